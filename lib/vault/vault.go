package vault

import (
	"fmt"
	"os"

	v "github.com/hashicorp/vault/api"
)

type Vault = v.Client

type VaultManager struct {
	Services *Vault
}

func NewVaultManager() (VaultManager, error) {
	config := v.Config{
		Address: os.Getenv("VAULT_ADDR"),
	}

	services, err := v.NewClient(&config)
	if err != nil {
		return VaultManager{}, fmt.Errorf("failed to create Vault client: %w", err)
	}

	vault_manager := VaultManager{
		Services: services,
	}
	return vault_manager, nil
}

func (manager *VaultManager) Health() bool {
	services_health, err := manager.Services.Sys().Health()
	if err != nil {
		return false
	}

	return services_health.Initialized && services_health.Sealed
}

func (manager *VaultManager) read(path string) (string, error) {
	secret, err := manager.Services.Logical().Read(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no secret found at path: %s", path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid secret data format at path: %s", path)
	}
	key, ok := data["value"].(string)
	if !ok {
		return "", fmt.Errorf("key not found or invalid in secret data at path: %s", path)
	}
	return key, nil
}

func (manager *VaultManager) GetDbPwd() (string, error) {
	return manager.read("services/data/db/mcs_pwd")
}

func (manager *VaultManager) GetCachePwd() (string, error) {
	return manager.read("services/data/cache/mcs_pwd")
}

func (manager *VaultManager) GetJwtKey() (string, error) {
	return manager.read("services/data/auth/jwt_key")
}
