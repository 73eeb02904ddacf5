package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/r41nm4k3r/AutopassGui/internal/config"
	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"github.com/r41nm4k3r/AutopassGui/internal/repository"
)

// VaultServiceTestSuite 密码槽服务测试套件
type VaultServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	db       *gorm.DB
	device   *hardware.DeviceManager
	history  *SendLogService
	vault    VaultService
	slotRepo repository.PasswordSlotRepository
}

func (suite *VaultServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()

	// 每个测试创建新的内存数据库
	suite.db = repository.SetupTestDB()
	suite.slotRepo = repository.NewPasswordSlotRepository(suite.db)
	suite.NoError(suite.slotRepo.EnsureDefaults(suite.ctx))

	// 模拟模式的设备管理器，不启用自动重连
	suite.device = hardware.NewDeviceManager(&config.SerialConfig{
		MockMode: true,
		BaudRate: 9600,
	})

	// 发送历史用长刷新间隔，测试中手动Flush保证确定性
	suite.history = NewSendLogService(
		repository.NewSendLogRepository(suite.db),
		&config.HistoryConfig{
			BufferSize:    100,
			BatchSize:     100,
			FlushInterval: time.Hour,
		},
	)

	suite.vault = NewVaultService(suite.slotRepo, suite.device, suite.history, zap.NewNop())
}

func (suite *VaultServiceTestSuite) TearDownTest() {
	suite.history.Stop()
	suite.device.Close()
	repository.CleanupTestDB(suite.db)
}

// TestListSlots 测试获取全部槽位
func (suite *VaultServiceTestSuite) TestListSlots() {
	slots, err := suite.vault.ListSlots(suite.ctx)
	suite.NoError(err)
	suite.Len(slots, models.SlotCount)

	for i, slot := range slots {
		suite.Equal(i+1, slot.SlotNo)
		suite.Equal(models.DefaultLabel(i+1), slot.Label)
		suite.Equal(models.DefaultSequence(i+1), slot.Sequence)
	}
}

// TestGetSlot 测试获取指定槽位
func (suite *VaultServiceTestSuite) TestGetSlot() {
	slot, err := suite.vault.GetSlot(suite.ctx, 3)
	suite.NoError(err)
	suite.Equal(3, slot.SlotNo)
	suite.Equal("password3", slot.Sequence)

	// 槽位号越界
	_, err = suite.vault.GetSlot(suite.ctx, 0)
	suite.True(apperrors.Is(err, apperrors.ErrSlotNotFound))

	_, err = suite.vault.GetSlot(suite.ctx, models.SlotCount+1)
	suite.True(apperrors.Is(err, apperrors.ErrSlotNotFound))
}

// TestRenameSlot 测试修改按钮名称
func (suite *VaultServiceTestSuite) TestRenameSlot() {
	slot, err := suite.vault.RenameSlot(suite.ctx, 1, "  工作邮箱  ")
	suite.NoError(err)
	suite.Equal("工作邮箱", slot.Label, "名称应去除首尾空白")
	suite.Equal("password1", slot.Sequence, "触发序列不应被修改")

	// 空名称
	_, err = suite.vault.RenameSlot(suite.ctx, 1, "   ")
	suite.True(apperrors.Is(err, apperrors.ErrLabelEmpty))

	// 槽位号越界
	_, err = suite.vault.RenameSlot(suite.ctx, 9, "名称")
	suite.True(apperrors.Is(err, apperrors.ErrSlotNotFound))
}

// TestSetSequence 测试修改触发序列
func (suite *VaultServiceTestSuite) TestSetSequence() {
	slot, err := suite.vault.SetSequence(suite.ctx, 2, "unlock-2024")
	suite.NoError(err)
	suite.Equal("unlock-2024", slot.Sequence)
	suite.Equal(models.DefaultLabel(2), slot.Label, "按钮名称不应被修改")

	// 序列原样保存，不做裁剪
	slot, err = suite.vault.SetSequence(suite.ctx, 2, " spaced ")
	suite.NoError(err)
	suite.Equal(" spaced ", slot.Sequence)

	// 空序列
	_, err = suite.vault.SetSequence(suite.ctx, 2, "")
	suite.True(apperrors.Is(err, apperrors.ErrSequenceEmpty))

	_, err = suite.vault.SetSequence(suite.ctx, 2, "  \t ")
	suite.True(apperrors.Is(err, apperrors.ErrSequenceEmpty))
}

// TestResetDefaults 测试恢复默认并断开设备
func (suite *VaultServiceTestSuite) TestResetDefaults() {
	// 先改动槽位并连接设备
	_, err := suite.vault.RenameSlot(suite.ctx, 1, "改过的名称")
	suite.NoError(err)
	_, err = suite.vault.SetSequence(suite.ctx, 2, "changed")
	suite.NoError(err)

	suite.NoError(suite.device.Connect(suite.ctx, "mock"))
	suite.True(suite.device.IsConnected())

	slots, err := suite.vault.ResetDefaults(suite.ctx)
	suite.NoError(err)
	suite.Len(slots, models.SlotCount)

	// 设备被断开，槽位恢复默认
	suite.False(suite.device.IsConnected(), "重置应先断开设备")
	for i, slot := range slots {
		suite.Equal(models.DefaultLabel(i+1), slot.Label)
		suite.Equal(models.DefaultSequence(i+1), slot.Sequence)
	}
}

// TestResetDefaultsWhileDisconnected 未连接时重置跳过断开步骤
func (suite *VaultServiceTestSuite) TestResetDefaultsWhileDisconnected() {
	suite.False(suite.device.IsConnected())

	slots, err := suite.vault.ResetDefaults(suite.ctx)
	suite.NoError(err)
	suite.Len(slots, models.SlotCount)
}

// TestSendSlot 测试下发槽位触发序列
func (suite *VaultServiceTestSuite) TestSendSlot() {
	suite.NoError(suite.device.Connect(suite.ctx, "mock"))

	result, err := suite.vault.SendSlot(suite.ctx, 2)
	suite.NoError(err)
	suite.NotEmpty(result.TraceID)
	suite.Equal(models.SendKindSlot, result.Kind)
	suite.Equal(2, result.SlotNo)
	suite.Equal("password2", result.Command)
	suite.Equal("mock", result.Port)

	// 设备收到的是槽位的触发序列
	suite.Equal("password2", suite.device.Status().LastCommand)

	// 发送历史记录一条成功记录
	suite.history.Flush()
	logs, total, err := suite.history.Query(&models.SendLogQuery{TraceID: result.TraceID})
	suite.NoError(err)
	suite.Equal(int64(1), total)
	suite.True(logs[0].Success)
	suite.Equal(len("password2")+1, logs[0].BytesSent)
	suite.Equal(2, *logs[0].SlotNo)
}

// TestSendSlotCustomSequence 修改过的序列按新值下发
func (suite *VaultServiceTestSuite) TestSendSlotCustomSequence() {
	suite.NoError(suite.device.Connect(suite.ctx, "mock"))

	_, err := suite.vault.SetSequence(suite.ctx, 1, "open-sesame")
	suite.NoError(err)

	result, err := suite.vault.SendSlot(suite.ctx, 1)
	suite.NoError(err)
	suite.Equal("open-sesame", result.Command)
	suite.Equal("open-sesame", suite.device.Status().LastCommand)
}

// TestSendSlotNotConnected 未连接时发送失败且留下失败记录
func (suite *VaultServiceTestSuite) TestSendSlotNotConnected() {
	_, err := suite.vault.SendSlot(suite.ctx, 1)
	suite.True(apperrors.Is(err, apperrors.ErrNotConnected))

	suite.history.Flush()
	success := false
	logs, total, err := suite.history.Query(&models.SendLogQuery{Success: &success})
	suite.NoError(err)
	suite.Equal(int64(1), total)
	suite.Equal(models.SendKindSlot, logs[0].Kind)
	suite.NotEmpty(logs[0].ErrorMsg)
	suite.Zero(logs[0].BytesSent)
}

// TestSendCustom 测试下发自定义命令
func (suite *VaultServiceTestSuite) TestSendCustom() {
	suite.NoError(suite.device.Connect(suite.ctx, "mock"))

	result, err := suite.vault.SendCustom(suite.ctx, "status")
	suite.NoError(err)
	suite.Equal(models.SendKindCustom, result.Kind)
	suite.Zero(result.SlotNo)
	suite.Equal("status", result.Command)
	suite.Equal("status", suite.device.Status().LastCommand)

	suite.history.Flush()
	logs, total, err := suite.history.Query(&models.SendLogQuery{Kind: models.SendKindCustom})
	suite.NoError(err)
	suite.Equal(int64(1), total)
	suite.Nil(logs[0].SlotNo)
}

// TestSendCustomEmpty 空命令被拒绝且不产生记录
func (suite *VaultServiceTestSuite) TestSendCustomEmpty() {
	_, err := suite.vault.SendCustom(suite.ctx, "")
	suite.True(apperrors.Is(err, apperrors.ErrCommandEmpty))

	_, err = suite.vault.SendCustom(suite.ctx, "   ")
	suite.True(apperrors.Is(err, apperrors.ErrCommandEmpty))

	suite.history.Flush()
	_, total, err := suite.history.Query(&models.SendLogQuery{})
	suite.NoError(err)
	suite.Zero(total)
}

func TestVaultServiceSuite(t *testing.T) {
	suite.Run(t, new(VaultServiceTestSuite))
}
