package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
)

// portprobe 串口诊断工具
// 用于在不启动守护进程的情况下验证打字器硬件：
//
//	portprobe -list
//	portprobe -port /dev/ttyACM0 -send password1 -wait 3s
func main() {
	var (
		list     = flag.Bool("list", false, "列出当前存在的候选串口设备")
		port     = flag.String("port", "", "串口设备路径")
		send     = flag.String("send", "", "发送的命令内容")
		baud     = flag.Int("baud", 9600, "波特率")
		patterns = flag.String("patterns", "ttyACM,ttyUSB", "扫描的设备名模式，逗号分隔")
		bootWait = flag.Duration("boot", 2*time.Second, "打开串口后等待板子复位的时间")
		wait     = flag.Duration("wait", 3*time.Second, "发送后等待设备回显的时间")
	)
	flag.Parse()

	if *list {
		listPorts(*patterns)
		return
	}

	if *port == "" || *send == "" {
		fmt.Fprintln(os.Stderr, "用法: portprobe -list | portprobe -port <设备> -send <命令>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := probe(*port, *send, *baud, *bootWait, *wait); err != nil {
		fmt.Fprintf(os.Stderr, "探测失败: %v\n", err)
		os.Exit(1)
	}
}

// listPorts 扫描并打印候选设备
func listPorts(patterns string) {
	names := strings.Split(patterns, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}

	scanner := hardware.NewPortScanner(names, 0)
	ports := scanner.ListPorts()

	fmt.Println("=== 串口设备扫描 ===")
	if len(ports) == 0 {
		fmt.Println("未发现串口设备")
		fmt.Printf("扫描模式: %s\n", patterns)
		return
	}
	for _, p := range ports {
		fmt.Printf("%s  存在=%v\n", p, hardware.PortExists(p))
	}
	fmt.Printf("共 %d 个设备\n", len(ports))
}

// probe 打开串口、发送一条命令并打印设备回显
func probe(port, cmd string, baud int, bootDelay, wait time.Duration) error {
	typer := hardware.NewSerialTyper(&hardware.TyperConfig{
		Port:        port,
		BaudRate:    baud,
		ReadTimeout: 200 * time.Millisecond,
		BootDelay:   bootDelay,
	})

	typer.SetOnLine(func(line string) {
		fmt.Printf("<< %s\n", line)
	})
	typer.SetOnDisconnect(func(err error) {
		fmt.Printf("串口已断开: %v\n", err)
	})

	ctx, cancel := context.WithTimeout(context.Background(), bootDelay+10*time.Second)
	defer cancel()

	fmt.Printf("正在打开 %s (波特率 %d，等待复位 %v)...\n", port, baud, bootDelay)
	if err := typer.Connect(ctx); err != nil {
		return err
	}
	defer typer.Disconnect()

	fmt.Printf(">> %s\n", cmd)
	if err := typer.Send(ctx, cmd); err != nil {
		return err
	}

	// 回显由读取协程异步打印
	time.Sleep(wait)
	return nil
}
