package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"datachat-cli/internal/api"
	"datachat-cli/internal/app"
	"datachat-cli/internal/model"
)

func askYesNo(in *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [Y/n]: ", prompt)
	answer, _ := in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "" || answer == "y" || answer == "yes"
}

// readLine 读取一行，EOF 且没有内容时返回 io.EOF
func readLine(in *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword 终端中隐藏输入，否则按普通行读取
func readPassword(in *bufio.Reader, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(in, prompt)
	}
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(fd)
	fmt.Println() // 换行
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	return string(passwordBytes), nil
}

// promptCredentials 交互式补全未填写的连接信息
func promptCredentials(in *bufio.Reader, creds *api.Credentials) error {
	var err error
	if creds.Type == "" {
		if creds.Type, err = readLine(in, "数据库类型 (mysql/postgresql) [mysql]: "); err != nil {
			return err
		}
		if creds.Type == "" {
			creds.Type = "mysql"
		}
	}
	if creds.URL == "" {
		if creds.URL, err = readLine(in, "主机地址 (host:port): "); err != nil {
			return err
		}
	}
	if creds.Name == "" {
		if creds.Name, err = readLine(in, "数据库名: "); err != nil {
			return err
		}
	}
	if creds.Username == "" {
		if creds.Username, err = readLine(in, "用户名: "); err != nil {
			return err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = readPassword(in, "密码: "); err != nil {
			return err
		}
	}
	return nil
}

// loadCSVFile 读取本地文件，contentType 为空时按扩展名推断
func loadCSVFile(path, contentType string) (*api.File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" && strings.EqualFold(filepath.Ext(path), ".csv") {
		contentType = "text/csv"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &api.File{Name: filepath.Base(path), ContentType: contentType, Content: content}, nil
}

// resolveSession 按序号（/sessions 列表中的位置）、完整 ID 或唯一前缀查找会话
func resolveSession(ctx context.Context, ctrl *app.Controller, ref string) (model.Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Session{}, errors.New("请指定会话序号或 ID")
	}
	sessions, err := ctrl.Sessions(ctx)
	if err != nil {
		return model.Session{}, err
	}

	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(sessions) {
		return sessions[n-1], nil
	}

	var matches []model.Session
	for _, s := range sessions {
		if s.ID == ref {
			return s, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return model.Session{}, fmt.Errorf("会话不存在: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return model.Session{}, fmt.Errorf("前缀 %s 匹配到 %d 个会话，请输入更长的 ID", ref, len(matches))
	}
}
