// internal/infra/servicebus/client.go
package servicebus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

const namespaceSuffix = ".servicebus.windows.net"

// Credentials selects how the client authenticates. The first usable option
// wins: connection string, then SAS key name/value, then TokenCredential.
type Credentials struct {
	ConnectionString string
	Namespace        string
	SASKeyName       string
	SASKeyValue      string
	TokenCredential  azcore.TokenCredential
}

// NewClient builds a Service Bus client from creds.
func NewClient(creds Credentials) (*azservicebus.Client, error) {
	switch {
	case creds.ConnectionString != "":
		return azservicebus.NewClientFromConnectionString(creds.ConnectionString, nil)
	case creds.Namespace != "" && creds.SASKeyName != "" && creds.SASKeyValue != "":
		return azservicebus.NewClientFromConnectionString(ConnectionString(creds.Namespace, creds.SASKeyName, creds.SASKeyValue), nil)
	case creds.Namespace != "" && creds.TokenCredential != nil:
		return azservicebus.NewClient(FullyQualifiedNamespace(creds.Namespace), creds.TokenCredential, nil)
	default:
		return nil, errors.New("service bus needs a connection string, a namespace with SAS key, or a namespace with a token credential")
	}
}

// FullyQualifiedNamespace expands a short namespace name ("my-ns") to its host name.
func FullyQualifiedNamespace(namespace string) string {
	if strings.Contains(namespace, ".") {
		return namespace
	}
	return namespace + namespaceSuffix
}

// ConnectionString builds a shared-access-key connection string.
func ConnectionString(namespace, keyName, keyValue string) string {
	return fmt.Sprintf("Endpoint=sb://%s/;SharedAccessKeyName=%s;SharedAccessKey=%s",
		FullyQualifiedNamespace(namespace), keyName, keyValue)
}
