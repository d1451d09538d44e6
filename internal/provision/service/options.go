package service

import (
	"log/slog"

	provmetrics "vendo/internal/provision/metrics"
)

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *provmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}
