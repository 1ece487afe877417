package edge

import (
	"encoding/json"
	"net/http"
)

// 出错响应统一为 {ok:false, error:<code>}，不暴露内部细节给终端用户
type errorBody struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{OK: false, Error: code})
}

func writeErrorDetail(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{OK: false, Error: code, Detail: detail})
}
