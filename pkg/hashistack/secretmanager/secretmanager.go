package secretmanager

import (
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// Enabled reports whether a Vault address is configured for this process.
func Enabled() bool {
	return os.Getenv("VAULT_ADDR") != ""
}

// Options returns the secretmanager module when Vault is configured, nothing otherwise.
func Options() fx.Option {
	if !Enabled() {
		return fx.Options()
	}
	return Module
}

func ProvideVault() (*vault.Client, error) {
	client, err := vault.New(
		vault.WithEnvironment(),
	)
	if err != nil {
		return nil, err
	}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		if err := client.SetToken(token); err != nil {
			return nil, err
		}
	}

	zap.L().Info("vault client configured", zap.String("addr", os.Getenv("VAULT_ADDR")))
	return client, nil
}
