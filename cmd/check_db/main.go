package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"realtime-sketch/internal/config"
	"realtime-sketch/internal/database"
)

func main() {
	// .env 로드 (database.LoadConfig가 환경 변수를 읽음)
	_ = config.Load()

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// rooms 테이블 존재 여부
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_name = 'rooms'
		)
	`
	if err := db.Raw(query).Scan(&exists).Error; err != nil {
		log.Fatal("Failed to check rooms table:", err)
	}

	fmt.Printf("📊 rooms table exists: %v\n", exists)
	if !exists {
		fmt.Println("⚠️ rooms table is missing; start the server once to run AutoMigrate")
		return
	}

	type ColumnInfo struct {
		ColumnName string
		DataType   string
		IsNullable string
	}
	var columns []ColumnInfo
	query = `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = 'rooms'
		ORDER BY ordinal_position
	`
	if err := db.Raw(query).Scan(&columns).Error; err != nil {
		log.Fatal("Failed to get column info:", err)
	}

	fmt.Println("📋 Columns:")
	for _, col := range columns {
		fmt.Printf("  - %s (%s, nullable=%s)\n", col.ColumnName, col.DataType, col.IsNullable)
	}
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := database.NewRoomRepository(db).CountRooms(ctx)
	if err != nil {
		log.Fatal("Failed to count rooms:", err)
	}
	fmt.Printf("🏠 Registered rooms: %d\n", count)
}
