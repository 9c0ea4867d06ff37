// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// types

type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var (
	ErrNoPool = errors.New("database pool not initialized")
)

// Private

var (
	pool             PgxIface
	openTransactions map[string]string
	trxLocker        sync.Mutex
)

// Public

func SetPool(myPool PgxIface) {
	trxLocker.Lock()
	openTransactions = make(map[string]string)
	trxLocker.Unlock()
	pool = myPool
}

func Connect(ctx context.Context) error {
	myPool, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return err
	}
	if err = myPool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		return err
	}
	SetPool(myPool)
	return nil
}

// OpenSqlite opens the sqlite price database at path. The file must already exist unless
// create is set.
func OpenSqlite(ctx context.Context, path string, create bool) (*sql.DB, error) {
	mode := "rw"
	if create {
		mode = "rwc"
	}
	dsn := fmt.Sprintf("file:%s?mode=%s&_busy_timeout=5000", path, mode)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Error().Stack().Err(err).Str("Path", path).Msg("could not open sqlite database")
		return nil, err
	}

	// sqlite only supports a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		log.Error().Stack().Err(err).Str("Path", path).Msg("could not ping sqlite database")
		db.Close()
		return nil, err
	}

	return db, nil
}

// LogOpenTransactions writes an INFO log for each open transaction
func LogOpenTransactions() {
	trxLocker.Lock()
	defer trxLocker.Unlock()
	for k, v := range openTransactions {
		log.Info().Str("TrxId", k).Str("Caller", v).Msg("open transaction")
	}
}

// NumOpenTransactions returns the number of transactions that have not been committed or rolled back
func NumOpenTransactions() int {
	trxLocker.Lock()
	defer trxLocker.Unlock()
	return len(openTransactions)
}

// Trx begins a tracked transaction on the connection pool
func Trx(ctx context.Context) (pgx.Tx, error) {
	if pool == nil {
		return nil, ErrNoPool
	}

	trx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	// record transactions in openTransaction log
	_, file, lineno, ok := runtime.Caller(1)
	caller := fmt.Sprintf("[%v] %s:%d", ok, file, lineno)
	trxID := uuid.New().String()

	trxLocker.Lock()
	openTransactions[trxID] = caller
	trxLocker.Unlock()

	return &PvDbTx{
		id: trxID,
		tx: trx,
	}, nil
}

func untrack(id string) {
	trxLocker.Lock()
	delete(openTransactions, id)
	trxLocker.Unlock()
}
