package main

import (
	"encoding/json"
	"flag"
	"fmt"
	stdlog "log"
	"os"

	"github.com/joho/godotenv"

	"github.com/postboard/social-front/internal/config"
	"github.com/postboard/social-front/internal/log"
	"github.com/postboard/social-front/internal/server"
)

var BuildVersion = "dev"

func init() {
	stdlog.SetFlags(0)
	stdlog.SetOutput(os.Stderr)
	stdlog.SetPrefix("")
}

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"baseUrl":        "http://localhost:8080",
			"addr":           ":8080",
			"allowedOrigins": []string{"http://localhost:5173"},
		},
		"auth": map[string]interface{}{
			"jwtSecret":     map[string]string{"$env": "SOCIAL_FRONT_JWT_SECRET"},
			"encryptionKey": map[string]string{"$env": "SOCIAL_FRONT_ENCRYPTION_KEY"},
		},
		"storage": map[string]interface{}{
			"type": "memory",
		},
		"platforms": map[string]interface{}{
			"linkedin": map[string]interface{}{
				"clientId":     map[string]string{"$env": "LINKEDIN_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "LINKEDIN_CLIENT_SECRET"},
			},
			"facebook": map[string]interface{}{
				"clientId":     map[string]string{"$env": "FACEBOOK_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "FACEBOOK_CLIENT_SECRET"},
			},
			"twitter": map[string]interface{}{
				"clientId":     map[string]string{"$env": "TWITTER_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "TWITTER_CLIENT_SECRET"},
			},
		},
		"refine": map[string]interface{}{
			"apiUrl": "https://api.openai.com/v1",
			"apiKey": map[string]string{"$env": "OPENAI_API_KEY"},
			"model":  "gpt-4o-mini",
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	// Optional .env for local development; env vars already set take precedence
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.LogWarn("Failed to load .env file: %v", err)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}
	if err := server.Start(cfg); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
