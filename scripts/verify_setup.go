package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/RecoveryAshes/lawcrawl/internal/config"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  lawcrawl 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	// 检查Go版本
	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 检查浏览器
	if path, found := launcher.LookPath(); found {
		fmt.Printf("✅ Chrome/Chromium: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到本地Chrome/Chromium - 首次运行时rod会自动下载")
	}

	// 检查配置
	fmt.Println()
	fmt.Println("检查配置...")
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("❌ 加载配置失败: %v\n", err)
		allOK = false
	} else {
		if err := cfg.Validate(); err != nil {
			fmt.Printf("❌ 配置无效: %v\n", err)
			allOK = false
		} else {
			fmt.Printf("✅ 配置有效 (%d个站点)\n", len(cfg.Sites))
		}

		if err := utils.EnsureWritableDir(cfg.Output.BaseDir); err != nil {
			fmt.Printf("❌ %v\n", err)
			allOK = false
		} else {
			fmt.Printf("✅ 输出目录可写: %s\n", cfg.Output.BaseDir)
		}
	}

	// 检查项目依赖
	fmt.Println()
	fmt.Println("检查Go模块依赖...")
	if _, err := os.Stat("go.mod"); err == nil {
		fmt.Println("✅ go.mod文件存在")

		fmt.Println("正在下载依赖...")
		cmd := exec.Command("go", "mod", "download")
		if err := cmd.Run(); err != nil {
			fmt.Printf("❌ go mod download失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 依赖下载完成")
		}
	} else {
		fmt.Println("❌ go.mod文件不存在")
		allOK = false
	}

	// 检查项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/lawcrawl",
		"internal/browser",
		"internal/core",
		"internal/crawlers",
		"internal/ledger",
		"internal/identity",
		"internal/models",
	}

	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/lawcrawl' 构建项目")
		fmt.Println("  2. 运行 './lawcrawl init' 生成配置")
		fmt.Println("  3. 运行 './lawcrawl crawl --site belgium' 开始爬取")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
