package env

import "github.com/mholland/senville-sync/internal/config"

var Cfg *config.Config
