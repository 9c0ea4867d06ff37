package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/penny-vault/pv-optimizer/cmd"
	"github.com/spf13/viper"
)

func configureViper() {
	// values from .env become environment variables; a missing file is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "could not load .env: %v\n", err)
	}

	// read config file
	viper.SetConfigName("pvopt")
	viper.SetConfigType("toml")
	viper.AddConfigPath("/etc/pv-optimizer/")
	viper.AddConfigPath("$HOME/.config/pv-optimizer")
	viper.AddConfigPath(".")

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}
}

func main() {
	configureViper()
	cmd.Execute()
}
