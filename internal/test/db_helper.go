package test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"anomali-dm/migrations"
)

// SetupTestDB 设置测试数据库连接并确保表结构存在
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	host := getEnv("TEST_DB_HOST", "localhost")
	port := getEnv("TEST_DB_PORT", "5432")
	user := getEnv("TEST_DB_USER", "postgres")
	password := getEnv("TEST_DB_PASSWORD", "postgres")
	dbname := getEnv("TEST_DB_NAME", "anomali_dm_test")

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Skipf("无法连接测试数据库: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("无法ping测试数据库: %v", err)
	}

	if err := migrations.Up(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("初始化测试表结构失败: %v", err)
	}

	return db
}

// TeardownTestDB 关闭测试数据库
func TeardownTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	if db != nil {
		db.Close()
	}
}

// getEnv 获取环境变量,如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// TruncateTables 清空战役相关表
func TruncateTables(t *testing.T, db *sql.DB, tables ...string) {
	t.Helper()

	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			t.Fatalf("清空表失败 %s: %v", table, err)
		}
	}
}

// BeginTestTransaction 开启测试事务
func BeginTestTransaction(t *testing.T, db *sql.DB) *sql.Tx {
	t.Helper()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("开启测试事务失败: %v", err)
	}

	return tx
}

// RollbackTestTransaction 回滚测试事务
func RollbackTestTransaction(t *testing.T, tx *sql.Tx) {
	t.Helper()

	if tx != nil {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Logf("回滚测试事务失败: %v", err)
		}
	}
}
