/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package provider provides functionality for managing database connections and clients.
package provider

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/asgardeo/stageflow/internal/system/config"
	"github.com/asgardeo/stageflow/internal/system/database/client"
	"github.com/asgardeo/stageflow/internal/system/database/model"
	"github.com/asgardeo/stageflow/internal/system/log"
)

const (
	dataSourceTypePostgres = "postgres"
	dataSourceTypeSQLite   = "sqlite"
	dataSourceTypeMySQL    = "mysql"

	// ConfigDBName identifies the database holding flow, stage and policy definitions.
	ConfigDBName = "config"
	// RuntimeDBName identifies the database holding runtime state such as flow tokens.
	RuntimeDBName = "runtime"
)

// dbConfig represents the local database configuration.
type dbConfig struct {
	dsn        string
	driverName string
}

// DBProviderInterface defines the interface for getting database clients.
type DBProviderInterface interface {
	GetDBClient(dbName string) (client.DBClientInterface, error)
	Close() error
}

// DBProvider is the implementation of DBProviderInterface.
type DBProvider struct {
	configClient  client.DBClientInterface
	configMutex   sync.RWMutex
	runtimeClient client.DBClientInterface
	runtimeMutex  sync.RWMutex
}

var (
	instance *DBProvider
	once     sync.Once
)

// GetDBProvider returns the instance of DBProvider.
func GetDBProvider() DBProviderInterface {
	once.Do(func() {
		instance = &DBProvider{}
	})
	return instance
}

// GetDBClient returns a database client based on the provided database name.
// Not required to close the returned client manually since it manages its own connection pool.
func (d *DBProvider) GetDBClient(dbName string) (client.DBClientInterface, error) {
	switch dbName {
	case ConfigDBName:
		return d.getOrInitClient(&d.configClient, &d.configMutex,
			config.GetServerRuntime().Config.Database.Config)
	case RuntimeDBName:
		return d.getOrInitClient(&d.runtimeClient, &d.runtimeMutex,
			config.GetServerRuntime().Config.Database.Runtime)
	default:
		return nil, fmt.Errorf("unsupported database name: %s", dbName)
	}
}

// getOrInitClient gets or initializes a DB client with locking.
func (d *DBProvider) getOrInitClient(
	clientPtr *client.DBClientInterface,
	mutex *sync.RWMutex,
	dataSource config.DataSource,
) (client.DBClientInterface, error) {
	mutex.RLock()
	if *clientPtr != nil {
		c := *clientPtr
		mutex.RUnlock()
		return c, nil
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if *clientPtr != nil {
		return *clientPtr, nil
	}

	c, err := openClient(dataSource)
	if err != nil {
		return nil, err
	}
	*clientPtr = c
	return c, nil
}

// openClient opens and verifies a connection pool for the data source.
func openClient(dataSource config.DataSource) (client.DBClientInterface, error) {
	dbConfig, err := getDBConfig(dataSource)
	if err != nil {
		return nil, err
	}
	dbName := dataSource.Name

	db, err := sql.Open(dbConfig.driverName, dbConfig.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", dbName, err)
	}

	if dataSource.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dataSource.MaxOpenConns)
	}
	if dataSource.MaxIdleConns > 0 {
		db.SetMaxIdleConns(dataSource.MaxIdleConns)
	}
	if dataSource.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(dataSource.ConnMaxLifetime) * time.Second)
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to ping database %s: %w", dbName, err), db.Close())
	}

	if dbConfig.driverName == dataSourceTypeSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			return nil, errors.Join(
				fmt.Errorf("failed to enable foreign key constraints for %s: %w", dbName, err), db.Close())
		}
	}

	return client.NewDBClient(model.NewDB(db), dbConfig.driverName), nil
}

// getDBConfig returns the driver name and DSN for the provided data source.
func getDBConfig(dataSource config.DataSource) (dbConfig, error) {
	switch dataSource.Type {
	case dataSourceTypePostgres:
		return dbConfig{
			driverName: dataSourceTypePostgres,
			dsn: fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				dataSource.Hostname, dataSource.Port, dataSource.Username, dataSource.Password,
				dataSource.Name, dataSource.SSLMode),
		}, nil
	case dataSourceTypeSQLite:
		options := dataSource.Options
		if options != "" && options[0] != '?' {
			options = "?" + options
		}
		home := ""
		if config.IsServerRuntimeInitialized() {
			home = config.GetServerRuntime().ServerHome
		}
		return dbConfig{
			driverName: dataSourceTypeSQLite,
			dsn:        path.Join(home, dataSource.Path) + options,
		}, nil
	case dataSourceTypeMySQL:
		cfg := mysql.NewConfig()
		cfg.User = dataSource.Username
		cfg.Passwd = dataSource.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(dataSource.Hostname, strconv.Itoa(dataSource.Port))
		cfg.DBName = dataSource.Name
		cfg.ParseTime = true
		return dbConfig{driverName: dataSourceTypeMySQL, dsn: cfg.FormatDSN()}, nil
	default:
		return dbConfig{}, fmt.Errorf("unsupported data source type: %s", dataSource.Type)
	}
}

// Close closes the database connections.
func (d *DBProvider) Close() error {
	configErr := d.closeClient(&d.configClient, &d.configMutex, ConfigDBName)
	runtimeErr := d.closeClient(&d.runtimeClient, &d.runtimeMutex, RuntimeDBName)
	if err := errors.Join(configErr, runtimeErr); err != nil {
		return err
	}
	log.GetLogger().Debug("Database connections closed successfully")
	return nil
}

// closeClient is a helper to close a DB client with locking.
func (d *DBProvider) closeClient(clientPtr *client.DBClientInterface, mutex *sync.RWMutex,
	clientName string) error {
	mutex.Lock()
	defer mutex.Unlock()
	if *clientPtr != nil {
		if err := (*clientPtr).Close(); err != nil {
			return fmt.Errorf("failed to close %s client: %w", clientName, err)
		}
		*clientPtr = nil
	}
	return nil
}
