package domain

// Project is an immutable remote project snapshot.
type Project struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color int    `json:"color,omitempty"`
}

// Section is an immutable remote section snapshot.
type Section struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ProjectID int64  `json:"project_id"`
}

// Label is an immutable remote label snapshot.
type Label struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color int    `json:"color,omitempty"`
}
