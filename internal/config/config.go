package config

import (
	"errors"
	"os"
)

// Config 描述服务器运行时所需的关键配置。
type Config struct {
	BindAddr      string
	AdminPassword string
	ContentDir    string
	CommentsDir   string

	// 站点元数据,进入页面、订阅源与站点地图。
	SiteURL         string
	SiteTitle       string
	SiteDescription string
	SiteLang        string

	// ImageBaseURL 是结构化文档里图片存储键的默认前缀。
	ImageBaseURL string
	// TokenSecret 为空时由 main 生成随机密钥,重启后退订链接失效。
	TokenSecret string
}

// Load 从环境变量读取配置，并提供合理的默认值。
func Load() (Config, error) {
	cfg := Config{
		BindAddr:        getEnvDefault("BIND_ADDR", ":8080"),
		ContentDir:      getEnvDefault("CONTENT_DIR", "content"),
		CommentsDir:     getEnvDefault("COMMENTS_DIR", "comments"),
		SiteURL:         getEnvDefault("SITE_URL", "http://localhost:8080"),
		SiteTitle:       getEnvDefault("SITE_TITLE", "Inkwell"),
		SiteDescription: getEnvDefault("SITE_DESCRIPTION", ""),
		SiteLang:        getEnvDefault("SITE_LANG", "en"),
		ImageBaseURL:    os.Getenv("IMAGE_BASE_URL"),
		TokenSecret:     os.Getenv("TOKEN_SECRET"),
	}

	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	if cfg.AdminPassword == "" {
		return Config{}, errors.New("ADMIN_PASSWORD is required")
	}

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
