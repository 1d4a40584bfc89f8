package models

// DownloadRequest is the inbound body of POST /download.
type DownloadRequest struct {
	URL string `json:"url"`
}

// VideoStats carries backend-dependent engagement numbers. Remote lookup
// backends usually fill these; the extraction library fills what it knows.
type VideoStats struct {
	Duration int   `json:"duration,omitempty"`
	Plays    int64 `json:"plays,omitempty"`
	Likes    int64 `json:"likes,omitempty"`
	Comments int64 `json:"comments,omitempty"`
	Shares   int64 `json:"shares,omitempty"`
}

// DownloadResponse is the normalized success shape. Video is either a
// local serving path (/files/<name>) or a direct remote media URL,
// depending on which backend won.
type DownloadResponse struct {
	Success   bool        `json:"success"`
	Video     string      `json:"video"`
	Filename  string      `json:"filename,omitempty"`
	Title     string      `json:"title"`
	Author    string      `json:"author"`
	Caption   string      `json:"caption,omitempty"`
	Thumbnail string      `json:"thumbnail,omitempty"`
	Backend   string      `json:"backend"`
	Stats     *VideoStats `json:"stats,omitempty"`
}

type ErrorResponse struct {
	Success    bool     `json:"success"`
	Error      string   `json:"error"`
	Kind       string   `json:"kind,omitempty"`
	RetryAfter int      `json:"retry_after,omitempty"`
	Attempted  []string `json:"attempted_backends,omitempty"`
}

// HistoryEntry is one recorded successful extraction.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	VideoID   string `json:"video_id,omitempty"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Backend   string `json:"backend"`
	Filename  string `json:"filename,omitempty"`
	CreatedAt string `json:"created_at"`
}
