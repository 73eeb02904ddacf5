package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/api"
	"github.com/r41nm4k3r/AutopassGui/internal/config"
	"github.com/r41nm4k3r/AutopassGui/internal/database"
	"github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
	"github.com/r41nm4k3r/AutopassGui/internal/logger"
	"github.com/r41nm4k3r/AutopassGui/internal/service"
	"github.com/r41nm4k3r/AutopassGui/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 守护进程实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	device   *hardware.DeviceManager
	services *service.Services
	hub      *websocket.Hub
	notifier *websocket.StatusNotifier
	router   *api.Router
	httpSrv  *http.Server

	// 关闭控制
	errCh  chan error
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	// 显示版本信息
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// 显示帮助信息
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 设置系统参数
	setupSystem(&cfg.System)

	// 打印启动信息
	printStartInfo(cfg)

	// 创建服务器实例
	server := NewServer(cfg)

	// 启动服务器
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	// 等待退出信号
	server.WaitForShutdown()

	// 优雅关闭
	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		errCh:  make(chan error, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动打字器守护服务...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	// 初始化各个组件
	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	// 启动各个服务
	s.startServices()

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)),
		zap.Bool("mock_mode", s.cfg.Serial.MockMode),
		zap.Bool("auth_enabled", s.cfg.Auth.Enabled),
	)

	return nil
}

// initComponents 初始化组件
// 顺序：数据库 → 设备管理器 → 服务层 → 推送中心 → 路由
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	// 初始化数据库
	if err := s.initDatabase(); err != nil {
		return err
	}

	// 初始化设备管理器，设备缺席不阻止启动
	s.device = hardware.NewDeviceManager(&s.cfg.Serial)
	if err := s.device.Start(s.ctx); err != nil {
		return errors.Wrap(err, errors.ErrSerialPortOpen, "启动设备管理器失败")
	}

	// 初始化服务层
	s.services = service.NewServices(database.GetDB(), s.cfg, s.device, s.logger)

	// 写入初始操作员账号（认证未启用时为空操作）
	if err := s.services.Auth.EnsureBootstrap(s.ctx); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "初始化操作员账号失败")
	}

	// 初始化WebSocket推送
	s.hub = websocket.NewHub(logger.GetModuleLogger("websocket"))
	s.notifier = websocket.NewStatusNotifier(s.hub, s.device, logger.GetModuleLogger("notifier"))
	s.notifier.Start()

	// 初始化路由
	s.router = api.NewRouter(database.GetDB(), s.cfg, s.services, s.hub, s.notifier, s.logger)

	s.logger.Info("所有组件初始化完成")
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	// 初始化数据库连接
	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	// 自动迁移数据库
	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	// 检查数据库连接
	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// startServices 启动后台服务
func (s *Server) startServices() {
	s.logger.Info("启动服务...")

	// WebSocket推送中心
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()

	// HTTP服务器
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      s.router.GetEngine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Starting API server", zap.String("address", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()

	// 发送历史保留期清理
	if s.cfg.Vault.History.RetentionDays > 0 {
		s.wg.Add(1)
		go s.retentionLoop()
	}

	s.logger.Info("所有服务启动完成")
}

// retentionLoop 定期清理过期的发送记录
func (s *Server) retentionLoop() {
	defer s.wg.Done()

	// 启动后先清理一次，之后每天清理
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	cleanup := func() {
		deleted, err := s.services.SendLog.Cleanup()
		if err != nil {
			s.logger.Error("清理发送记录失败", zap.Error(err))
			return
		}
		if deleted > 0 {
			s.logger.Info("清理过期发送记录",
				zap.Int64("deleted", deleted),
				zap.Int("retention_days", s.cfg.Vault.History.RetentionDays))
		}
	}

	cleanup()
	for {
		select {
		case <-ticker.C:
			cleanup()
		case <-s.ctx.Done():
			return
		}
	}
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case err := <-s.errCh:
		s.logger.Error("服务异常退出", zap.Error(err))
	}
}

// Shutdown 优雅关闭服务器
// 顺序：HTTP → 推送中心 → 设备 → 服务层 → 数据库
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务器关闭异常", zap.Error(err))
		}
	}

	// 断开推送客户端
	if s.hub != nil {
		s.hub.Stop()
	}

	// 取消主上下文，触发后台协程退出
	s.cancel()

	// 等待所有服务关闭
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	// 关闭各个组件
	s.closeComponents()

	// 同步日志
	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}

// closeComponents 关闭组件，释放串口句柄和数据库连接
func (s *Server) closeComponents() {
	s.logger.Info("关闭组件...")

	// 关闭串口
	if s.device != nil {
		if err := s.device.Close(); err != nil {
			s.logger.Error("关闭设备失败", zap.Error(err))
		}
	}

	// 排空发送历史缓冲
	if s.services != nil {
		s.services.Close()
	}

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	s.logger.Info("所有组件已关闭")
}

// reloadConfig 重新加载配置
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfg = newCfg

	// 日志级别即时生效，其余配置需要重启
	logger.SetLevel(newCfg.Log.Level)

	s.logger.Info("配置重新加载完成", zap.String("log_level", newCfg.Log.Level))
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	// 设置时区
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}

	// 设置最大处理器数
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}

	// 设置文件描述符限制（Unix系统）
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err == nil {
		rLimit.Cur = rLimit.Max
		syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("AutoPass 打字器守护服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("AutoPass 打字器守护服务")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  autopassd [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  AUTOPASS_SERVER_PORT      HTTP监听端口")
	fmt.Println("  AUTOPASS_SERIAL_PORT      串口设备路径")
	fmt.Println("  AUTOPASS_SERIAL_MOCK_MODE 模拟模式 (true/false)")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  autopassd -config=/path/to/autopass.yaml")
	fmt.Println("  autopassd -version")
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	banner := `
╔═══════════════════════════════════════════════════════════════╗
║                                                               ║
║        _         _        ____                                ║
║       / \  _   _| |_ ___ |  _ \ __ _ ___ ___                  ║
║      / _ \| | | | __/ _ \| |_) / _` + "`" + ` / __/ __|                 ║
║     / ___ \ |_| | || (_) |  __/ (_| \__ \__ \                 ║
║    /_/   \_\__,_|\__\___/|_|   \__,_|___/___/                 ║
║                                                               ║
║                   硬件密码打字器守护服务                      ║
║                                                               ║
╚═══════════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("版本: %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())
	fmt.Printf("监听: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
