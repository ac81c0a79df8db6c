package storage

import (
	"fmt"
	"log"

	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/utils"
)

// NewProvider 根据配置创建存储提供者
// local / webdav / memory 使用签名令牌实现预签名，minio 使用原生预签名
func NewProvider(cfg *config.Config) (Provider, *Signer, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = "local"
	}
	log.Printf("Initializing storage, type: %s", storageType)

	if storageType == "minio" {
		p, err := NewMinioStorage(MinioConfig{
			Endpoint:        cfg.MinioEndpoint,
			AccessKeyID:     cfg.MinioAccessKeyID,
			SecretAccessKey: cfg.MinioSecretAccessKey,
			BucketName:      cfg.MinioBucketName,
			UseSSL:          cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Println("Successfully initialized MinIO storage.")
		return p, nil, nil
	}

	secret := cfg.StorageSigningSecret
	if secret == "" {
		// 随机密钥在重启后失效，已签发的 URL 也随之失效
		generated, err := utils.GenerateRandomToken(32)
		if err != nil {
			return nil, nil, err
		}
		secret = generated
		log.Println("Warning: storage_signing_secret is empty, using a random secret for this process")
	}
	signer, err := NewSigner(secret, cfg.BaseURL())
	if err != nil {
		return nil, nil, err
	}

	var p Provider
	switch storageType {
	case "local":
		p, err = NewLocalStorage(cfg.StorageLocalPath, signer)
	case "webdav":
		p, err = NewWebDAVStorage(WebDAVConfig{
			URL:      cfg.WebDAVURL,
			Username: cfg.WebDAVUsername,
			Password: cfg.WebDAVPassword,
			RootPath: cfg.WebDAVRootPath,
			Timeout:  cfg.WebDAVTimeout,
		}, signer)
	case "memory":
		p = NewMemoryStorage(signer)
	default:
		return nil, nil, fmt.Errorf("invalid storage type specified in config: %s", storageType)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s storage: %w", storageType, err)
	}

	log.Printf("Successfully initialized %s storage.", p.Name())
	return p, signer, nil
}
