package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は失効メモのクリーンアップワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマの最新化（PostgreSQLのマイグレーションまたはMongoDBのインデックス作成）を示す。
	CommandMigrate Command = "migrate"
	// CommandSeed はデモユーザーとデモ用の駐車メモを投入することを示す。
	CommandSeed Command = "seed"
	// CommandHealthcheck はdistrolessイメージ内から /health を叩くことを示す。
	CommandHealthcheck Command = "healthcheck"
)

// commands はサポートするサブコマンドの一覧。使い方の表示順を兼ねる。
var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandSeed, CommandHealthcheck}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。サポート外のコマンドはエラーにする。
// 2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := strings.ToLower(strings.TrimSpace(args[0]))
	for _, cmd := range commands {
		if string(cmd) == name {
			return cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q (available: %s)", args[0], usage())
}

func usage() string {
	names := make([]string, len(commands))
	for i, cmd := range commands {
		names[i] = string(cmd)
	}
	return strings.Join(names, ", ")
}
