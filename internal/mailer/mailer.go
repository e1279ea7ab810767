package mailer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/tripauth/internal/config"
)

type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	Tag      string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Factory func(cfg config.MailConfig) (Sender, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.MailConfig) (Sender, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("mail.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported mail type: %s", cfg.Type)
	}
	return factory(cfg)
}
