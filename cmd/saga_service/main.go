package main

import (
	"github.com/tumbleweedd/two_services_system/saga_service/internal/app"
)

func main() {
	app.Run()
}
