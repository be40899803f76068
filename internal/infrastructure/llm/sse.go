package llm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"quill-ai-api/pkg/logger"
)

// streamEndSentinel 上游流结束标记
const streamEndSentinel = "[DONE]"

// lineSplitter 将任意切分的字节块重组为完整行。
// 跨网络块被截断的行会留在缓冲区，等待下一块补齐后再输出。
type lineSplitter struct {
	rest []byte
}

// feed 追加一个字节块，返回其中所有完整行（不含行尾符）
func (s *lineSplitter) feed(p []byte) []string {
	s.rest = append(s.rest, p...)

	var lines []string
	for {
		i := bytes.IndexByte(s.rest, '\n')
		if i < 0 {
			return lines
		}
		line := strings.TrimRight(string(s.rest[:i]), "\r")
		s.rest = s.rest[i+1:]
		lines = append(lines, line)
	}
}

// relayFrames 读取上游 SSE 字节流，逐帧提取 data: 负载并交给 handle。
// 非 data 行与结束标记直接丢弃；单帧解析失败只跳过该帧，不中断整个流。
// 上游连接关闭（EOF）视为流正常结束。
func relayFrames(ctx context.Context, r io.Reader, handle func(payload []byte) error) error {
	splitter := &lineSplitter{}
	buf := make([]byte, 4096)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range splitter.feed(buf[:n]) {
				payload, ok := strings.CutPrefix(line, "data:")
				if !ok {
					continue
				}
				payload = strings.TrimSpace(payload)
				if payload == "" || payload == streamEndSentinel {
					continue
				}
				if herr := handle([]byte(payload)); herr != nil {
					logger.Debug(ctx, "skipping malformed stream frame", "error", herr.Error())
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// 客户端断开时请求上下文被取消，读取随之中止
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
