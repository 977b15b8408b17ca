package main

import (
	"flag"
	"fmt"
	"os"

	jwtpkg "github.com/fjfoyain/reservation-boss/internal/auth/jwt"
	"github.com/fjfoyain/reservation-boss/internal/config"
)

// main 为管理接口签发一个 admin 角色的访问令牌。
func main() {
	email := flag.String("email", "", "管理员邮箱（写入令牌声明）")
	flag.Parse()

	if *email == "" {
		fmt.Println("用法:")
		fmt.Println("  RESBOSS_JWT_SECRET=... go run cmd/admin-token/main.go -email=admin@northhighland.com")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	manager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	token, err := manager.GenerateToken(*email, jwtpkg.RoleAdmin)
	if err != nil {
		fmt.Printf("错误: 签发令牌失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ 令牌已签发（有效期 %s）\n\n%s\n", cfg.JWT.Expiry, token)
}
