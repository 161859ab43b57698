package handler

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/shnkreddy98/bootstrap/internal/model"
)

// NewSPAHandler はビルド済みSPAを配信するハンドラーを返す。
// 存在しないパスにはindex.htmlを返し、クライアント側ルーティングに任せる。
// dirが空または存在しない場合、および/api/配下は常にJSONの404を返す。
func NewSPAHandler(dir string) http.Handler {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	})

	if dir == "" {
		return notFound
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		slog.Info("static directory not found, SPA serving disabled", slog.String("dir", dir))
		return notFound
	}

	index := filepath.Join(dir, "index.html")
	files := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			notFound.ServeHTTP(w, r)
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}

		if _, err := os.Stat(index); err != nil {
			notFound.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}
