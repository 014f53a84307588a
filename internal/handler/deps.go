package handler

import (
	"signalhub/internal/app/signal"
	"signalhub/internal/configs"
)

type AppDeps struct {
	Hub    *signal.Hub
	Config *configs.AppConfig
}
