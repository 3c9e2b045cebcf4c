package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// ProgressInfo tracks one imported CSV file.
type ProgressInfo struct {
	FileName     string    `json:"fileName"`
	TotalRecords int       `json:"totalRecords"`
	Processed    int       `json:"processed"`
	Created      int       `json:"created"`
	Conflicts    int       `json:"conflicts"`
	Failed       int       `json:"failed"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
}

// StudentCreator is the registry operation the importer drives per row.
type StudentCreator interface {
	CreateStudent(ctx context.Context, studentID, studentName, course string) (*CreateResult, error)
}

// ImportService loads students from CSV files with columns
// studentID,studentName,course. Each row goes through CreateStudent, so a
// repeated studentID is counted as a conflict and never stored twice.
type ImportService struct {
	registry StudentCreator
	log      zerolog.Logger

	fileProgressMap   map[string]*ProgressInfo
	fileProgressLock  sync.RWMutex
	progressListeners map[chan *ProgressInfo]bool
	listenerLock      sync.RWMutex

	// workerSemaphore caps row workers across all files being imported.
	workerSemaphore chan struct{}
}

func NewImportService(registry StudentCreator, log zerolog.Logger) *ImportService {
	return NewImportServiceWithWorkers(registry, log, runtime.NumCPU()*2)
}

func NewImportServiceWithWorkers(registry StudentCreator, log zerolog.Logger, maxWorkers int) *ImportService {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ImportService{
		registry:          registry,
		log:               log.With().Str("component", "import_service").Logger(),
		fileProgressMap:   make(map[string]*ProgressInfo),
		progressListeners: make(map[chan *ProgressInfo]bool),
		workerSemaphore:   make(chan struct{}, maxWorkers),
	}
}

func (s *ImportService) RegisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	s.progressListeners[ch] = true
}

func (s *ImportService) UnregisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	delete(s.progressListeners, ch)
}

// BroadcastProgress sends a snapshot to every listener that is ready for it.
func (s *ImportService) BroadcastProgress(progress *ProgressInfo) {
	s.listenerLock.RLock()
	defer s.listenerLock.RUnlock()

	for listener := range s.progressListeners {
		snapshot := *progress
		select {
		case listener <- &snapshot:
		default:
		}
	}
}

func (s *ImportService) GetFileProgress(fileName string) *ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		copyProgress := *progress
		return &copyProgress
	}
	return nil
}

// GetAllFileProgress returns a snapshot per file, ordered by file name.
func (s *ImportService) GetAllFileProgress() []*ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	result := make([]*ProgressInfo, 0, len(s.fileProgressMap))
	for _, progress := range s.fileProgressMap {
		copyProgress := *progress
		result = append(result, &copyProgress)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FileName < result[j].FileName })
	return result
}

// ErrImportInProgress is returned by StartImport while an earlier import of
// the same file name is still processing.
var ErrImportInProgress = errors.New("file is already being imported")

// StartImport registers fileName as processing. Progress of a finished
// import of the same name is replaced.
func (s *ImportService) StartImport(fileName string) error {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	if progress, exists := s.fileProgressMap[fileName]; exists && progress.Status == StatusProcessing {
		return ErrImportInProgress
	}
	s.fileProgressMap[fileName] = &ProgressInfo{
		FileName:  fileName,
		Status:    StatusProcessing,
		StartTime: time.Now(),
	}
	return nil
}

// ProcessCSV imports every row of r and blocks until all rows are done.
func (s *ImportService) ProcessCSV(ctx context.Context, fileName string, r io.Reader) error {
	if err := s.StartImport(fileName); err != nil {
		return err
	}
	return s.RunImport(ctx, fileName, r)
}

// RunImport imports the rows of a file registered with StartImport.
func (s *ImportService) RunImport(ctx context.Context, fileName string, r io.Reader) error {
	startTime := time.Now()

	s.fileProgressLock.RLock()
	_, started := s.fileProgressMap[fileName]
	s.fileProgressLock.RUnlock()
	if !started {
		return fmt.Errorf("import of %s was not started", fileName)
	}

	records, err := readRecords(r)
	if err != nil {
		s.updateProgressError(fileName, "Failed to read CSV: "+err.Error())
		return err
	}

	s.fileProgressLock.Lock()
	s.fileProgressMap[fileName].TotalRecords = len(records)
	s.fileProgressLock.Unlock()

	numWorkers := calculateWorkers(len(records))
	s.log.Info().
		Str("file", fileName).
		Int("records", len(records)).
		Int("workers", numWorkers).
		Msg("starting import")

	rowCh := make(chan []string, min(len(records), 1000)+1)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go s.worker(ctx, fileName, rowCh, &wg)
	}

	for _, record := range records {
		rowCh <- record
	}
	close(rowCh)
	wg.Wait()

	s.fileProgressLock.Lock()
	if progress, exists := s.fileProgressMap[fileName]; exists {
		progress.Status = StatusCompleted
		progress.EndTime = time.Now()
		s.BroadcastProgress(progress)
	}
	s.fileProgressLock.Unlock()

	s.log.Info().Str("file", fileName).Dur("duration", time.Since(startTime)).Msg("import completed")
	return nil
}

// readRecords parses the whole file, dropping a leading header row.
func readRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && isHeader(records[0]) {
		records = records[1:]
	}
	return records, nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "studentID")
}

// calculateWorkers picks a worker count from the number of rows.
func calculateWorkers(rows int) int {
	cpus := runtime.NumCPU()

	switch {
	case rows < 100:
		return min(2, cpus)
	case rows < 1000:
		return min(4, cpus)
	default:
		return min(8, cpus)
	}
}

func (s *ImportService) worker(ctx context.Context, fileName string, rowCh <-chan []string, wg *sync.WaitGroup) {
	s.workerSemaphore <- struct{}{}
	defer func() {
		<-s.workerSemaphore
		wg.Done()
	}()

	for record := range rowCh {
		outcome, err := s.importRow(ctx, record)
		if err != nil {
			s.log.Warn().Err(err).Str("file", fileName).Strs("record", record).Msg("row not imported")
		}
		s.recordOutcome(fileName, outcome)
	}
}

var errMalformedRow = errors.New("row must have studentID, studentName and course")

// importRow returns the zero Outcome when the row failed.
func (s *ImportService) importRow(ctx context.Context, record []string) (Outcome, error) {
	if len(record) != 3 {
		return 0, errMalformedRow
	}
	result, err := s.registry.CreateStudent(ctx,
		strings.TrimSpace(record[0]),
		strings.TrimSpace(record[1]),
		strings.TrimSpace(record[2]),
	)
	if err != nil {
		return 0, fmt.Errorf("create student: %w", err)
	}
	return result.Outcome, nil
}

func (s *ImportService) recordOutcome(fileName string, outcome Outcome) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	progress, exists := s.fileProgressMap[fileName]
	if !exists {
		return
	}
	progress.Processed++
	switch outcome {
	case OutcomeCreated:
		progress.Created++
	case OutcomeConflict:
		progress.Conflicts++
	default:
		progress.Failed++
	}
	if progress.Processed%100 == 0 || progress.Processed == progress.TotalRecords {
		s.BroadcastProgress(progress)
	}
}

func (s *ImportService) updateProgressError(fileName string, errorMsg string) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		progress.Status = StatusError
		progress.Error = errorMsg
		progress.EndTime = time.Now()
		s.BroadcastProgress(progress)
	}
}
