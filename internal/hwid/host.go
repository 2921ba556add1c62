package hwid

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const commandTimeout = 10 * time.Second

// CommandRunner 执行外部命令并返回标准输出
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner 基于 os/exec 的默认实现
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Host 读取本机的处理器标识和主硬盘序列号
type Host struct {
	fs   afero.Fs
	run  CommandRunner
	goos string
	log  *zap.Logger
}

var _ Provider = (*Host)(nil)

// HostOption 用于替换文件系统、命令执行器或平台，测试时模拟其他机器
type HostOption func(*Host)

func WithFs(fs afero.Fs) HostOption {
	return func(h *Host) { h.fs = fs }
}

func WithRunner(run CommandRunner) HostOption {
	return func(h *Host) { h.run = run }
}

func WithGOOS(goos string) HostOption {
	return func(h *Host) { h.goos = goos }
}

func NewHost(log *zap.Logger, opts ...HostOption) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Host{
		fs:   afero.NewOsFs(),
		run:  ExecRunner,
		goos: runtime.GOOS,
		log:  log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Fingerprint 每次调用都重新读取硬件标识，任何一项读取失败都返回错误
func (h *Host) Fingerprint() (Fingerprint, error) {
	cpu, err := h.ProcessorID()
	if err != nil {
		return "", err
	}
	disk, err := h.DiskSerial()
	if err != nil {
		return "", err
	}
	fp, err := Derive(cpu, disk)
	if err != nil {
		return "", err
	}
	h.log.Debug("计算硬件指纹", zap.String("goos", h.goos), zap.String("fingerprint", fp.String()))
	return fp, nil
}

// ProcessorID 处理器标识
func (h *Host) ProcessorID() (string, error) {
	var (
		id  string
		err error
	)
	switch h.goos {
	case "linux":
		id, err = h.processorIDLinux()
	case "windows":
		id, err = h.processorIDWindows()
	case "darwin":
		id, err = h.processorIDDarwin()
	default:
		err = fmt.Errorf("unsupported platform %q", h.goos)
	}
	if err != nil {
		return "", fmt.Errorf("%w: processor id: %v", ErrUnavailable, err)
	}
	if id = sanitize(id); id == "" {
		return "", fmt.Errorf("%w: processor id is empty", ErrUnavailable)
	}
	return id, nil
}

// DiskSerial 主硬盘序列号
func (h *Host) DiskSerial() (string, error) {
	var (
		serial string
		err    error
	)
	switch h.goos {
	case "linux":
		serial, err = h.diskSerialLinux()
	case "windows":
		serial, err = h.diskSerialWindows()
	case "darwin":
		serial, err = h.diskSerialDarwin()
	default:
		err = fmt.Errorf("unsupported platform %q", h.goos)
	}
	if err != nil {
		return "", fmt.Errorf("%w: disk serial: %v", ErrUnavailable, err)
	}
	if serial = sanitize(serial); serial == "" {
		return "", fmt.Errorf("%w: disk serial is empty", ErrUnavailable)
	}
	return serial, nil
}

func (h *Host) output(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	out, err := h.run(ctx, name, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

// --- linux ---

var cpuinfoKeys = []string{"vendor_id", "cpu family", "model", "stepping", "model name"}

func (h *Host) processorIDLinux() (string, error) {
	data, err := afero.ReadFile(h.fs, "/proc/cpuinfo")
	if err != nil {
		return "", err
	}

	var (
		fields  = map[string]string{}
		serial  string
		inFirst = true
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			// 只取第一个处理器块；ARM 上的 Serial 行在文件末尾单独成块
			if len(fields) > 0 {
				inFirst = false
			}
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "Serial" {
			serial = v
			continue
		}
		if _, exists := fields[k]; inFirst && !exists {
			fields[k] = v
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	if serial != "" && strings.Trim(serial, "0") != "" {
		return serial, nil
	}

	parts := make([]string, 0, len(cpuinfoKeys))
	for _, k := range cpuinfoKeys {
		if v := fields[k]; v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no processor identification in /proc/cpuinfo")
	}
	return strings.Join(parts, ";"), nil
}

var virtualBlockPrefixes = []string{"loop", "ram", "zram", "dm-", "md", "sr", "fd", "nbd"}

var serialFiles = []string{"device/serial", "serial", "device/wwid", "wwid"}

func (h *Host) diskSerialLinux() (string, error) {
	entries, err := afero.ReadDir(h.fs, "/sys/block")
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if isVirtualBlock(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		dir := path.Join("/sys/block", name)
		if removable, err := afero.ReadFile(h.fs, path.Join(dir, "removable")); err == nil {
			if strings.TrimSpace(string(removable)) == "1" {
				continue
			}
		}
		for _, f := range serialFiles {
			data, err := afero.ReadFile(h.fs, path.Join(dir, f))
			if err != nil {
				continue
			}
			if serial := strings.TrimSpace(string(data)); serial != "" {
				h.log.Debug("读取硬盘序列号", zap.String("device", name), zap.String("source", f))
				return serial, nil
			}
		}
	}
	return "", fmt.Errorf("no readable disk serial under /sys/block")
}

func isVirtualBlock(name string) bool {
	for _, p := range virtualBlockPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// --- windows ---

func (h *Host) processorIDWindows() (string, error) {
	out, err := h.output("wmic", "cpu", "get", "ProcessorId", "/value")
	if err == nil {
		if v := firstValue(out, "ProcessorId"); v != "" {
			return v, nil
		}
	}
	out, psErr := h.output("powershell", "-NoProfile", "-Command",
		"(Get-CimInstance Win32_Processor | Select-Object -First 1).ProcessorId")
	if psErr != nil {
		if err != nil {
			return "", fmt.Errorf("%v; %v", err, psErr)
		}
		return "", psErr
	}
	return firstLine(out), nil
}

func (h *Host) diskSerialWindows() (string, error) {
	out, err := h.output("wmic", "diskdrive", "where", "Index=0", "get", "SerialNumber", "/value")
	if err == nil {
		if v := firstValue(out, "SerialNumber"); v != "" {
			return v, nil
		}
	}
	out, psErr := h.output("powershell", "-NoProfile", "-Command",
		"(Get-CimInstance Win32_DiskDrive | Where-Object Index -eq 0).SerialNumber")
	if psErr != nil {
		if err != nil {
			return "", fmt.Errorf("%v; %v", err, psErr)
		}
		return "", psErr
	}
	return firstLine(out), nil
}

// --- darwin ---

func (h *Host) processorIDDarwin() (string, error) {
	brand, err := h.output("sysctl", "-n", "machdep.cpu.brand_string")
	if err != nil {
		return "", err
	}
	id := firstLine(brand)
	// Apple Silicon 上没有 signature
	if sig, err := h.output("sysctl", "-n", "machdep.cpu.signature"); err == nil {
		if s := firstLine(sig); s != "" {
			id += ";" + s
		}
	}
	return id, nil
}

func (h *Host) diskSerialDarwin() (string, error) {
	out, err := h.output("system_profiler", "SPNVMeDataType", "SPSerialATADataType")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok && k == "Serial Number" && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("no serial number in system_profiler output")
}

// firstValue 解析 wmic /value 输出中的 Key=Value
func firstValue(out, key string) string {
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok && strings.EqualFold(k, key) {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func firstLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
