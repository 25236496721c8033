// cmd/dispatcher/wire.go
package main

import (
	"context"
	"fmt"
	"log/slog"

	"aci-dispatcher/internal/config"
	"aci-dispatcher/internal/domain"
	"aci-dispatcher/internal/infra/aci"
	"aci-dispatcher/internal/infra/etcd"
	"aci-dispatcher/internal/infra/logprov"
	"aci-dispatcher/internal/infra/servicebus"
	"aci-dispatcher/internal/naming"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// queueClient is the process-wide handle on whichever queue backend is configured.
type queueClient interface {
	domain.QueueService
	domain.QueueSender
	Close(ctx context.Context) error
}

type etcdQueueClient struct {
	etcd.Queue
	close func() error
}

func (c etcdQueueClient) Close(context.Context) error { return c.close() }

func openQueue(cfg *config.Config, logger *slog.Logger) (queueClient, error) {
	switch cfg.QueueBackend {
	case config.QueueBackendEtcd:
		client, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create etcd client: %w", err)
		}
		logger.Info("connected to etcd", "endpoints", cfg.EtcdEndpoints)
		return etcdQueueClient{
			Queue: etcd.NewEtcdQueue(client, cfg.EtcdQueuePrefix, cfg.ReceiveWait, cfg.EtcdTimeout, logger),
			close: client.Close,
		}, nil

	default:
		creds := servicebus.Credentials{
			ConnectionString: cfg.ServiceBusConnectionString,
			Namespace:        cfg.ServiceBusNamespace,
			SASKeyName:       cfg.ServiceBusSASKeyName,
			SASKeyValue:      cfg.ServiceBusSASKeyValue,
		}
		if creds.ConnectionString == "" && creds.SASKeyName == "" {
			cred, err := newCredential(cfg)
			if err != nil {
				return nil, err
			}
			creds.TokenCredential = cred
		}
		client, err := servicebus.NewClient(creds)
		if err != nil {
			return nil, fmt.Errorf("failed to create service bus client: %w", err)
		}
		return servicebus.NewQueue(client, cfg.ReceiveWait, logger), nil
	}
}

func openProvisioner(cfg *config.Config, logger *slog.Logger) (domain.Provisioner, error) {
	if cfg.ProvisionerBackend == config.ProvisionerBackendLog {
		return logprov.NewProvisioner(logger), nil
	}
	cred, err := newCredential(cfg)
	if err != nil {
		return nil, err
	}
	return aci.NewProvisioner(cfg.SubscriptionID, cred, logger)
}

// newCredential uses the user-assigned managed identity when one is
// configured and the default Azure credential chain otherwise.
func newCredential(cfg *config.Config) (azcore.TokenCredential, error) {
	if cfg.ManagedIdentityClientID != "" {
		cred, err := azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.ManagedIdentityClientID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create managed identity credential: %w", err)
		}
		return cred, nil
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create default azure credential: %w", err)
	}
	return cred, nil
}

func newNameGenerator(strategy string) domain.NameGenerator {
	if strategy == config.NameStrategyUUID {
		return naming.UUIDGenerator{}
	}
	return naming.NewGenerator(nil)
}
