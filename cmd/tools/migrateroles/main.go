package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/config"
	"github.com/zhouzirui/z-tavern/local/internal/service/history"
)

// migrateroles 把 saved_chats.json 改写为规范格式：回复角色统一为 "model"，时间戳统一为 RFC 3339。
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	dataDir := flag.String("data", cfg.Storage.DataDir, "数据目录，包含 saved_chats.json")
	dryRun := flag.Bool("dry-run", false, "只统计需要改写的记录，不写文件")
	flag.Parse()

	store, err := history.NewChatStore(*dataDir, zap.NewNop())
	if err != nil {
		log.Fatalf("打开聊天记录失败: %v", err)
	}

	report, err := store.Inspect()
	if err != nil {
		log.Fatalf("读取聊天记录失败: %v", err)
	}
	log.Printf("%s: chats=%d messages=%d legacy_roles=%d naive_timestamps=%d",
		store.Path(), report.Chats, report.Messages, report.LegacyRoles, report.NaiveStamps)

	if *dryRun {
		return
	}
	if report.LegacyRoles == 0 && report.NaiveStamps == 0 {
		log.Println("已是规范格式，无需改写")
		return
	}

	chats, messages, err := store.Normalize(context.Background())
	if err != nil {
		log.Fatalf("改写失败: %v", err)
	}
	log.Printf("已改写 %d 个聊天，共 %d 条消息", chats, messages)
}
