package storage

import (
	"encoding/json"
	"fmt"
)

// s3RawConfig mirrors the provider-specific keys a DatabaseStorage's config
// blob carries for provider "s3".
type s3RawConfig struct {
	AccessKey   string `json:"access_key"`
	SecretKey   string `json:"secret_key"`
	BucketName  string `json:"bucket_name"`
	EndPointURL string `json:"end_point_url"`
	SSL         bool   `json:"ssl"`
	Region      string `json:"region"`
}

// googleDriveRawConfig mirrors the provider-specific keys for provider
// "google-drive".
type googleDriveRawConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	FolderID     string `json:"folder_id"`
}

// FromDatabaseStorage decodes one storage's free-form config blob into a
// Config ready for New. serverURL is the agent's own control-plane base
// URL, used to build the local provider's tus endpoint; it is ignored by
// every other provider.
func FromDatabaseStorage(serverURL, provider string, rawConfig json.RawMessage) (Config, error) {
	switch provider {
	case "local":
		return Config{Provider: provider, Endpoint: serverURL + "/tus/files"}, nil

	case "s3":
		var raw s3RawConfig
		if len(rawConfig) > 0 {
			if err := json.Unmarshal(rawConfig, &raw); err != nil {
				return Config{}, fmt.Errorf("storage: decode s3 config: %w", err)
			}
		}
		return Config{
			Provider:        provider,
			Bucket:          raw.BucketName,
			Region:          raw.Region,
			S3Endpoint:      raw.EndPointURL,
			AccessKeyID:     raw.AccessKey,
			SecretAccessKey: raw.SecretKey,
			PathStyle:       true,
		}, nil

	case "google-drive", "googledrive":
		var raw googleDriveRawConfig
		if len(rawConfig) > 0 {
			if err := json.Unmarshal(rawConfig, &raw); err != nil {
				return Config{}, fmt.Errorf("storage: decode google-drive config: %w", err)
			}
		}
		return Config{
			Provider:     provider,
			ClientID:     raw.ClientID,
			ClientSecret: raw.ClientSecret,
			RefreshToken: raw.RefreshToken,
			FolderID:     raw.FolderID,
		}, nil

	default:
		return Config{Provider: provider}, nil
	}
}
