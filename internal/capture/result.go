package capture

// SaveResult is returned for every save request. On success FileName, FullPath
// and AssignedIndex are set; on failure ErrorKind and Message are.
type SaveResult struct {
	Success       bool      `json:"success"`
	FileName      string    `json:"fileName,omitempty"`
	FullPath      string    `json:"fullPath,omitempty"`
	AssignedIndex int       `json:"assignedIndex,omitempty"`
	ErrorKind     ErrorKind `json:"errorKind,omitempty"`
	Message       string    `json:"message,omitempty"`
}

// NextNumberResult answers a pre-save lookup. On failure NextNumber is 1 and
// Count is 0.
type NextNumberResult struct {
	Success    bool      `json:"success"`
	NextNumber int       `json:"nextNumber"`
	Count      int       `json:"count"`
	ErrorKind  ErrorKind `json:"errorKind,omitempty"`
	Message    string    `json:"message,omitempty"`
}

func failedSave(err error) SaveResult {
	return SaveResult{
		Success:   false,
		ErrorKind: KindOf(err),
		Message:   err.Error(),
	}
}
