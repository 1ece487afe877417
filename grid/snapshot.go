package grid

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedSnapshot 表示快照帧结构不合法或 data 长度与 w*h 不符
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Snapshot 一帧完整的棋盘状态：行优先，index = row*W + col。
// 每帧整体替换上一帧，从不做增量合并。
type Snapshot struct {
	W    int
	H    int
	Data []Cell
}

// matrixFrame 服务端→客户端的快照帧（WebSocket 文本 JSON）
// 示例：{"type":"matrix","w":64,"h":64,"data":[0,1,...]}
type matrixFrame struct {
	Type string `json:"type"`
	W    int    `json:"w"`
	H    int    `json:"h"`
	Data []int  `json:"data"`
}

// At 读取 (row, col) 处的格子
func (s *Snapshot) At(row, col int) Cell {
	return s.Data[row*s.W+col]
}

// ParseSnapshot 解析一帧快照。长度与 w*h 不符的帧整帧拒绝，
// 绝不部分采用。
func ParseSnapshot(raw []byte) (*Snapshot, error) {
	var f matrixFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if f.Type != "matrix" {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrMalformedSnapshot, f.Type)
	}
	if f.W <= 0 || f.H <= 0 || len(f.Data) != f.W*f.H {
		return nil, fmt.Errorf("%w: w=%d h=%d data=%d", ErrMalformedSnapshot, f.W, f.H, len(f.Data))
	}
	data := make([]Cell, len(f.Data))
	for i, v := range f.Data {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("%w: cell %d out of range: %d", ErrMalformedSnapshot, i, v)
		}
		data[i] = Cell(v)
	}
	return &Snapshot{W: f.W, H: f.H, Data: data}, nil
}

// EncodeSnapshot 把快照编码为 matrix 帧
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	if len(s.Data) != s.W*s.H {
		return nil, fmt.Errorf("%w: w=%d h=%d data=%d", ErrMalformedSnapshot, s.W, s.H, len(s.Data))
	}
	data := make([]int, len(s.Data))
	for i, c := range s.Data {
		data[i] = int(c)
	}
	return json.Marshal(matrixFrame{Type: "matrix", W: s.W, H: s.H, Data: data})
}
