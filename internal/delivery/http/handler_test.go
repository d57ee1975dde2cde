package saga_service_http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/delivery/http/mocks"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

func newTestHandler(t *testing.T) (*Handler, *mocks.MockOrderService, *mocks.MockInventoryService, *mocks.MockPaymentService) {
	t.Helper()

	ctl := gomock.NewController(t)
	t.Cleanup(ctl.Finish)

	orderSvc := mocks.NewMockOrderService(ctl)
	inventorySvc := mocks.NewMockInventoryService(ctl)
	paymentSvc := mocks.NewMockPaymentService(ctl)

	log := logger.NewSlogLogger(logger.EnvLocal)

	return NewHandler(log, orderSvc, inventorySvc, paymentSvc), orderSvc, inventorySvc, paymentSvc
}

func TestCreateOrder(t *testing.T) {
	type mockBehavior func(orderSvc *mocks.MockOrderService)

	tCases := []struct {
		name         string
		reqBody      string
		mockBehavior mockBehavior
		wantStatus   int
		wantOrderID  string
	}{
		{
			name:    "OK",
			reqBody: `{"customer_id":"customer-1","amount":99.9,"product_id":"PROD-001","quantity":2}`,
			mockBehavior: func(orderSvc *mocks.MockOrderService) {
				orderSvc.EXPECT().
					CreateOrder(gomock.Any(), models.CreateOrderRequest{
						CustomerID: "customer-1",
						Amount:     99.9,
						ProductID:  "PROD-001",
						Quantity:   2,
					}).
					Return("order-1", nil)
			},
			wantStatus:  http.StatusAccepted,
			wantOrderID: "order-1",
		},
		{
			name:         "missing customer id",
			reqBody:      `{"amount":99.9,"product_id":"PROD-001","quantity":2}`,
			mockBehavior: func(orderSvc *mocks.MockOrderService) {},
			wantStatus:   http.StatusBadRequest,
		},
		{
			name:         "non-positive quantity",
			reqBody:      `{"customer_id":"customer-1","amount":99.9,"product_id":"PROD-001","quantity":0}`,
			mockBehavior: func(orderSvc *mocks.MockOrderService) {},
			wantStatus:   http.StatusBadRequest,
		},
		{
			name:         "malformed body",
			reqBody:      `{"customer_id":`,
			mockBehavior: func(orderSvc *mocks.MockOrderService) {},
			wantStatus:   http.StatusBadRequest,
		},
		{
			name:    "insufficient inventory",
			reqBody: `{"customer_id":"customer-1","amount":99.9,"product_id":"PROD-001","quantity":500}`,
			mockBehavior: func(orderSvc *mocks.MockOrderService) {
				orderSvc.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					Return("", internalErrors.ErrInsufficientInventory)
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			h, orderSvc, _, _ := newTestHandler(t)
			tCase.mockBehavior(orderSvc)

			req := httptest.NewRequest(http.MethodPost, "/order", bytes.NewBufferString(tCase.reqBody))
			rec := httptest.NewRecorder()

			h.InitRoutes().ServeHTTP(rec, req)

			require.Equal(t, tCase.wantStatus, rec.Code)

			if tCase.wantOrderID != "" {
				var resp map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				require.Equal(t, tCase.wantOrderID, resp["order_id"])
			}
		})
	}
}

func TestGetOrder(t *testing.T) {
	h, orderSvc, _, _ := newTestHandler(t)

	orderSvc.EXPECT().
		Order(gomock.Any(), "order-1").
		Return(&models.Order{OrderID: "order-1", Status: models.OrderStatusCompleted}, nil)

	req := httptest.NewRequest(http.MethodGet, "/order/order-1", nil)
	rec := httptest.NewRecorder()

	h.InitRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Equal(t, models.OrderStatusCompleted, got.Status)
}

func TestGetOrder_NotFound(t *testing.T) {
	h, orderSvc, _, _ := newTestHandler(t)

	orderSvc.EXPECT().
		Order(gomock.Any(), "order-missing").
		Return(nil, internalErrors.ErrOrderNotFound)

	req := httptest.NewRequest(http.MethodGet, "/order/order-missing", nil)
	rec := httptest.NewRecorder()

	h.InitRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetInventory(t *testing.T) {
	h, _, inventorySvc, _ := newTestHandler(t)

	inventorySvc.EXPECT().
		Inventory(gomock.Any(), "PROD-001").
		Return(&models.Inventory{ProductID: "PROD-001", AvailableQuantity: 90, ReservedQuantity: 10}, nil)

	req := httptest.NewRequest(http.MethodGet, "/inventory/PROD-001", nil)
	rec := httptest.NewRecorder()

	h.InitRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Inventory
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Equal(t, 90, got.AvailableQuantity)
}

func TestGetPayment_NotFound(t *testing.T) {
	h, _, _, paymentSvc := newTestHandler(t)

	paymentSvc.EXPECT().
		PaymentByOrderID(gomock.Any(), "order-1").
		Return(nil, internalErrors.ErrPaymentNotFound)

	req := httptest.NewRequest(http.MethodGet, "/payment/order-1", nil)
	rec := httptest.NewRecorder()

	h.InitRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
