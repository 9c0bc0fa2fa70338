//go:build windows

// service_windows.go implements Windows service support for the relay
// using github.com/kardianos/service, so the browser extension has a
// relay to talk to without a logged-in console session.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
)

// relayProgram implements service.Interface around the relay loop. The
// service manager delivers no console signal on stop, so the program
// holds a cancel function and cancels the relay's context instead.
type relayProgram struct {
	cancel context.CancelFunc
	exit   chan struct{}
}

// Start is called by the service manager; it launches the relay in a
// goroutine and returns immediately.
func (p *relayProgram) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.exit = make(chan struct{})
	go func() {
		defer close(p.exit)
		runRelay(ctx, &serveOptions{})
	}()
	return nil
}

// Stop cancels the relay's context and waits for it to drain.
func (p *relayProgram) Stop(s service.Service) error {
	p.cancel()
	select {
	case <-p.exit:
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timeout waiting for service to stop")
	}
	return nil
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "MistralOCRRelay",
		DisplayName: "Mistral OCR Relay",
		Description: "Local HTTP relay bridging browser extensions to the Mistral OCR API",
		Arguments:   []string{"serve"},
		Option: service.KeyValue{
			"StartType": "automatic",
		},
	}
}

func newService() (service.Service, error) {
	s, err := service.New(&relayProgram{}, serviceConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// runAsServiceIfNeeded runs the relay under the service manager when not
// launched interactively. Returns true if it ran as a service.
func runAsServiceIfNeeded() (bool, error) {
	if service.Interactive() {
		return false, nil
	}
	s, err := newService()
	if err != nil {
		return false, err
	}
	if err := s.Run(); err != nil {
		return true, fmt.Errorf("service run failed: %w", err)
	}
	return true, nil
}

// handleServiceCommand executes a service management action.
func handleServiceCommand(action string) error {
	s, err := newService()
	if err != nil {
		return err
	}

	switch action {
	case "install":
		if err := s.Install(); err != nil {
			return fmt.Errorf("failed to install service: %w", err)
		}
		fmt.Println("Service installed successfully")
	case "uninstall":
		if err := s.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}
		fmt.Println("Service uninstalled successfully")
	case "start":
		if err := s.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
		fmt.Println("Service started successfully")
	case "stop":
		if err := s.Stop(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		fmt.Println("Service stopped successfully")
	default:
		return fmt.Errorf("unknown service command %q", action)
	}
	return nil
}
