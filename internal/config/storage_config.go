package config

type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
)

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetStorageDir() string
	GetStoragePassphrase() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStorageBackend() StorageBackend {
	switch b := StorageBackend(GetEnv("STORAGE_BACKEND", string(StorageFile))); b {
	case StorageMemory, StorageFile, StorageRedis:
		return b
	default:
		return StorageFile
	}
}

func (Storage) GetStorageDir() string {
	return GetEnv("STORAGE_DIR", "./data")
}

// GetStoragePassphrase encrypts the file backend at rest when non-empty.
func (Storage) GetStoragePassphrase() string {
	return GetEnv("STORAGE_PASSPHRASE", "")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetIntEnv("REDIS_DB", 0)
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "sdt:session:")
}
