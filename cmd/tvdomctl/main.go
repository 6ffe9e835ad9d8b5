// tvdomctl 是 TVDom 的命令行客户端。会话保存在 --state 指定的badger目录中，
// 每条命令都先恢复会话，再执行操作并以JSON打印结果。
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/haider-9/tvdom/internal/platform/config"
	"github.com/haider-9/tvdom/internal/platform/logging"
	"github.com/haider-9/tvdom/pkg/client"
	"github.com/haider-9/tvdom/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serverFlag  string
	stateFlag   string
	timeoutFlag time.Duration
	verboseFlag bool

	rootCmd = &cobra.Command{
		Use:           "tvdomctl",
		Short:         "TVDom 命令行客户端",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verboseFlag {
				level = "debug"
			}
			logging.Setup(config.LogConfig{Level: level, Pretty: true})
		},
	}
)

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tvdom")
	}
	return ".tvdom"
}

// env 是一次命令执行所需的全部依赖。
type env struct {
	ctx           context.Context
	session       *store.Session
	notifications *store.Notifications
	close         func()
}

// openEnv 打开会话存储并恢复登录状态。
func openEnv(cmd *cobra.Command) (*env, error) {
	storage, err := store.OpenBadgerStorage(stateFlag)
	if err != nil {
		return nil, fmt.Errorf("打开会话存储失败: %w", err)
	}
	api, err := client.New(serverFlag, client.WithTimeout(timeoutFlag))
	if err != nil {
		storage.Close()
		return nil, err
	}

	notifications := store.NewNotifications(api, store.WithNotificationsLogger(log.Logger))
	session := store.NewSession(api, storage,
		store.WithLogger(log.Logger),
		store.WithNotifications(notifications),
	)
	ctx, cancel := context.WithTimeout(cmd.Context(), 4*timeoutFlag)
	if err := session.Restore(ctx); err != nil {
		cancel()
		storage.Close()
		return nil, err
	}
	return &env{
		ctx:           ctx,
		session:       session,
		notifications: notifications,
		close: func() {
			cancel()
			if err := storage.Close(); err != nil {
				log.Warn().Err(err).Msg("关闭会话存储失败")
			}
		},
	}, nil
}

// run 打开环境后执行 fn，并把返回值以JSON打印到标准输出。
func run(fn func(e *env, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		out, err := fn(e, args)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "http://localhost:8080", "TVDom 服务地址")
	rootCmd.PersistentFlags().StringVar(&stateFlag, "state", defaultStateDir(), "会话存储目录")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", client.DefaultTimeout, "单个请求的超时时间")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "输出调试日志")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
