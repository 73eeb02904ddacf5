package hardware

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/r41nm4k3r/AutopassGui/internal/logger"
	"go.uber.org/zap"
)

// PortExists 检查串口设备节点是否存在
func PortExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// PortScanner 串口设备扫描器
type PortScanner struct {
	root     string   // 设备目录，默认/dev
	patterns []string // 设备名称模式（如 ttyACM、ttyUSB）
	maxIndex int      // 每个模式扫描的最大序号
	logger   *zap.Logger
}

// NewPortScanner 创建串口扫描器
func NewPortScanner(patterns []string, maxIndex int) *PortScanner {
	if len(patterns) == 0 {
		patterns = []string{"ttyACM", "ttyUSB"}
	}
	if maxIndex <= 0 {
		maxIndex = 9
	}
	return &PortScanner{
		root:     "/dev",
		patterns: patterns,
		maxIndex: maxIndex,
		logger:   logger.GetModuleLogger("hardware"),
	}
}

// ListPorts 扫描当前存在的串口设备
func (s *PortScanner) ListPorts() []string {
	ports := make([]string, 0, 4)
	seen := make(map[string]bool)

	for _, pattern := range s.patterns {
		for i := 0; i <= s.maxIndex; i++ {
			device := fmt.Sprintf("%s/%s%d", s.root, pattern, i)
			if seen[device] || !PortExists(device) {
				continue
			}
			seen[device] = true
			ports = append(ports, device)
		}
	}

	// macOS的USB调制解调器设备不带数字后缀，用glob匹配
	for _, pattern := range []string{"cu.usbmodem*", "tty.usbmodem*"} {
		matches, err := filepath.Glob(filepath.Join(s.root, pattern))
		if err != nil {
			continue
		}
		for _, device := range matches {
			if seen[device] {
				continue
			}
			seen[device] = true
			ports = append(ports, device)
		}
	}

	s.logger.Debug("扫描串口设备完成", zap.Strings("ports", ports))
	return ports
}

// FindFirst 返回第一个可用设备，未找到返回空串
func (s *PortScanner) FindFirst() string {
	ports := s.ListPorts()
	if len(ports) == 0 {
		return ""
	}
	return ports[0]
}
