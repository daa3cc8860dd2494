package mis

// Wire DTOs модельного сервиса. Бинарные данные ходят в base64 внутри
// JSON: инференс занимает секунды, накладные расходы кодирования на этом
// фоне не видны.

type Segment struct {
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
	Text   string  `json:"text"`
}

type transcribeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	Language    string `json:"language,omitempty"`
}

type TranscribeResponse struct {
	Segments  []Segment `json:"segments"`
	Language  string    `json:"language"`
	LatencyMS float64   `json:"latency_ms"`
}

type embedTextRequest struct {
	Texts []string `json:"texts"`
}

type embedVisionRequest struct {
	ImagesBase64 []string `json:"images_base64"`
}

type EmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimension  int         `json:"dimension"`
	LatencyMS  float64     `json:"latency_ms"`
}

type faceDetectRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type Face struct {
	BBox       [4]float64 `json:"bbox"`
	Confidence float64    `json:"confidence"`
}

type FaceDetectResponse struct {
	Faces     []Face  `json:"faces"`
	Count     int     `json:"count"`
	LatencyMS float64 `json:"latency_ms"`
}

type Health struct {
	Status          string   `json:"status"`
	LoadedModels    []string `json:"loaded_models"`
	Device          string   `json:"device"`
	MemoryUsedBytes uint64   `json:"memory_used_bytes"`
	UptimeSeconds   float64  `json:"uptime_seconds"`
	TextDim         int      `json:"text_dim"`
	VisionDim       int      `json:"vision_dim"`
}
