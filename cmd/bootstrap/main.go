// bootstrap はTodo APIサーバーのエントリーポイント。
//
// 使い方:
//
//	bootstrap [serve]              APIサーバーを起動する
//	bootstrap migrate [up]         マイグレーションを適用する
//	bootstrap migrate down [N]     直近N件（デフォルト1件）をロールバックする
//	bootstrap migrate version      適用済みバージョンを表示する
//	bootstrap tokens               開発用モックトークンを表示する
//	bootstrap prune                期限切れの匿名ユーザーを削除する
//	bootstrap healthcheck          /health を確認する（コンテナ用）
package main

import (
	"fmt"
	"os"

	"github.com/shnkreddy98/bootstrap/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
		os.Exit(1)
	}
}
