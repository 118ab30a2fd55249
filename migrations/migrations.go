// Package migrations 内嵌的数据库结构脚本
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/aarondl/sqlboiler/v4/boil"
)

//go:embed *.sql
var files embed.FS

// Up 按文件名顺序执行所有 .up.sql，脚本本身是幂等的
func Up(ctx context.Context, db boil.ContextExecutor) error {
	names, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		script, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("读取迁移脚本 %s 失败: %w", name, err)
		}
		if strings.TrimSpace(string(script)) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("执行迁移脚本 %s 失败: %w", name, err)
		}
	}
	return nil
}
