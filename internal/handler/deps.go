package handler

import (
	"rtchat/internal/app/account"
	"rtchat/internal/app/chat"
	"rtchat/internal/configs"
	"rtchat/internal/pkg/auth/jwt"
)

type AppDeps struct {
	Manager  *chat.Manager
	Accounts *account.Service
	Verifier *jwt.Verifier
	Config   *configs.AppConfig
}
