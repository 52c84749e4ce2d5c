package services

import (
	"github.com/fakturo/invoicestack/config"
	"github.com/fakturo/invoicestack/interfaces"
	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/repository"
	"github.com/fakturo/invoicestack/services/events"
	"github.com/fakturo/invoicestack/services/extractor"
	"github.com/fakturo/invoicestack/services/imap"
	"github.com/fakturo/invoicestack/services/notifier"
	"github.com/fakturo/invoicestack/services/pipeline"
)

type Services struct {
	MailboxClient  interfaces.MailboxClient
	Extractor      interfaces.InvoiceExtractor
	Notifier       interfaces.Notifier
	EventPublisher interfaces.EventPublisher
	Pipeline       interfaces.Pipeline
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	mailbox := imap.NewIMAPService(cfg.MailboxConfig, log)

	registry := extractor.NewStrategyRegistry(extractor.NewPdfExtractor())
	invoiceExtractor := extractor.NewInvoiceExtractor(log, registry, extractor.NewLinkHarvester(log))

	wechatNotifier := notifier.NewWeChatNotifier(cfg.WebhookConfig, log)

	// event fanout is optional, a mailbox-only deployment runs without a broker
	var publisher interfaces.EventPublisher
	if cfg.EventsConfig.RabbitMQURL != "" {
		publisherConfig := &events.PublisherConfig{
			MessageTTL:          events.DefaultMessageTTL,
			MaxRetries:          events.DefaultMaxRetries,
			PublishTimeout:      events.DefaultPublishTimeout,
			ReconnectBackoff:    events.DefaultReconnectBackoff,
			MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
		}

		rabbitPublisher, err := events.NewRabbitMQPublisher(cfg.EventsConfig.RabbitMQURL, cfg.EventsConfig.ExchangeName, log, publisherConfig)
		if err != nil {
			log.Warnf("Event publisher unavailable, continuing without fanout: %v", err)
		} else {
			publisher = rabbitPublisher
		}
	}

	services := Services{
		MailboxClient:  mailbox,
		Extractor:      invoiceExtractor,
		Notifier:       wechatNotifier,
		EventPublisher: publisher,
		Pipeline:       pipeline.NewPipelineService(mailbox, invoiceExtractor, repos.InvoiceRepository, wechatNotifier, publisher, log),
	}

	return &services, nil
}
