package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"collabdocs-server/core"
	"collabdocs-server/stores/filesystem"
	"collabdocs-server/stores/memory"
	"collabdocs-server/stores/sqlite"
)

// Store is what every backend provides: document persistence plus room
// activity tracking.
type Store interface {
	core.DocumentStore
	core.RoomActivity
}

// GetStore selects a backend from STORAGE_TYPE. The default is in-memory,
// which keeps nothing across restarts.
func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		storageField["basePath"] = basePath
		store = filesystem.NewDocumentStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewDocumentStore(dataSourceName)
	default:
		store = memory.NewDocumentStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("use storage")
	return store
}
