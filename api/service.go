package api

import "github.com/ikanisa/ibimina/internal/serviceiface"

type GatewayService struct {
	config map[string]interface{}
}

func NewGatewayService(cfg map[string]interface{}) serviceiface.Service {
	return &GatewayService{config: cfg}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

func (s *GatewayService) Start() error {
	port := 8080
	if s.config != nil {
		if p, ok := s.config["port"].(int); ok && p > 0 {
			port = p
		}
	}
	go StartGateway(port)
	return nil
}

func (s *GatewayService) Stop() error {
	return nil
}
