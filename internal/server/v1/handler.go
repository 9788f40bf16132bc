package v1

import (
	"github.com/nulzo/edge-gateway/internal/gateway"
	"github.com/nulzo/edge-gateway/internal/server/validator"
	"go.uber.org/zap"
)

// Handler groups the /v1 endpoints that share the gateway service.
type Handler struct {
	service   gateway.Service
	validator *validator.Validator
	logger    *zap.Logger
}

func NewHandler(service gateway.Service, v *validator.Validator, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		validator: v,
		logger:    logger,
	}
}
