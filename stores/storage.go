package stores

import (
	"context"
	"fmt"
	"os"

	"github.com/ayukmr/lixel-server/core"
	"github.com/ayukmr/lixel-server/stores/aws"
	"github.com/ayukmr/lixel-server/stores/filesystem"
	"github.com/ayukmr/lixel-server/stores/memory"
	"github.com/ayukmr/lixel-server/stores/sqlite"
	"github.com/sirupsen/logrus"
)

const (
	TypeFilesystem = "filesystem"
	TypeMemory     = "memory"
	TypeSQLite     = "sqlite"
	TypeS3         = "s3"
)

// Config selects and parameterizes the collection backend.
type Config struct {
	StorageType    string
	LocalPath      string
	DataSourceName string
	S3Bucket       string
	S3Key          string
}

// ConfigFromEnv reads STORAGE_TYPE and the backend-specific variables, applying defaults.
func ConfigFromEnv() Config {
	cfg := Config{
		StorageType:    os.Getenv("STORAGE_TYPE"),
		LocalPath:      os.Getenv("LOCAL_STORAGE_PATH"),
		DataSourceName: os.Getenv("DATA_SOURCE_NAME"),
		S3Bucket:       os.Getenv("S3_BUCKET_NAME"),
		S3Key:          os.Getenv("S3_OBJECT_KEY"),
	}
	if cfg.StorageType == "" {
		cfg.StorageType = TypeFilesystem
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = "./canvases.json"
	}
	if cfg.DataSourceName == "" {
		cfg.DataSourceName = "lixel.db"
	}
	if cfg.S3Key == "" {
		cfg.S3Key = "canvases.json"
	}
	return cfg
}

func GetStore(ctx context.Context, cfg Config) (core.CollectionStore, error) {
	var (
		store core.CollectionStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case TypeFilesystem:
		storageField["path"] = cfg.LocalPath
		store, err = filesystem.NewStore(cfg.LocalPath)
	case TypeSQLite:
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
	case TypeS3:
		storageField["bucketName"] = cfg.S3Bucket
		storageField["objectKey"] = cfg.S3Key
		store, err = aws.NewStore(ctx, cfg.S3Bucket, cfg.S3Key)
	case TypeMemory:
		storageField["storageType"] = "in-memory"
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
