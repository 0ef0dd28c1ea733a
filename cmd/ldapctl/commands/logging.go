package commands

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"

	"github.com/isometry/ldapctl/internal/ldap"
)

// setupLogging installs the root logger and the ldap subsystem. The root
// level comes from --log-level unless <PREFIX>_LOG is set; the subsystem can
// be tuned separately with <PREFIX>_LOG_LDAP.
func setupLogging(ctx context.Context, level, envPrefix string) context.Context {
	if env := os.Getenv(envPrefix + "_LOG"); env != "" {
		level = env
	}

	ctx = tfsdklog.NewRootProviderLogger(ctx,
		tfsdklog.WithLogName("ldapctl"),
		tfsdklog.WithLevel(parseLogLevel(level)),
		tfsdklog.WithoutLocation(),
		tfsdklog.WithStderrFromInit(),
	)

	ctx = tflog.NewSubsystem(ctx, ldap.LogSubsystem,
		tflog.WithLevelFromEnv(envPrefix+"_LOG", "LDAP"))

	ctx = tflog.MaskFieldValuesWithFieldKeys(ctx, sensitiveFieldKeys...)
	return tflog.SubsystemMaskFieldValuesWithFieldKeys(ctx, ldap.LogSubsystem, sensitiveFieldKeys...)
}

var sensitiveFieldKeys = []string{"password", "bind_password", "new_password", "current_password"}

// parseLogLevel maps a flag value to an hclog level; unknown values mean warn.
func parseLogLevel(level string) hclog.Level {
	if strings.EqualFold(level, "off") {
		return hclog.Off
	}
	if l := hclog.LevelFromString(level); l != hclog.NoLevel {
		return l
	}
	return hclog.Warn
}
