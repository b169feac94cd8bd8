// Package watcher 监听收件目录，新放入的日报工作簿依次交给处理函数
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	defaultDebounce = 800 * time.Millisecond
	queueSize       = 64

	// 处理完成后文件移入的子目录
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Handler 处理一个工作簿文件
type Handler func(ctx context.Context, path string) error

// Watcher 单目录监听器（不递归）
type Watcher struct {
	dir        string
	extensions []string
	debounce   time.Duration
	archive    bool
	handler    Handler
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	timers  map[string]*time.Timer
	started bool

	queue    chan string
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option 监听器选项
type Option func(*Watcher)

// WithExtensions 只处理这些扩展名
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		if len(exts) > 0 {
			w.extensions = exts
		}
	}
}

// WithDebounce 事件合并间隔
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithArchive 处理后将文件移入 processed/ 或 failed/
func WithArchive(enabled bool) Option {
	return func(w *Watcher) { w.archive = enabled }
}

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New 创建监听器
func New(dir string, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		dir:        filepath.Clean(dir),
		extensions: []string{".xlsx", ".xls"},
		debounce:   defaultDebounce,
		handler:    handler,
		logger:     zap.NewNop(),
		timers:     make(map[string]*time.Timer),
		queue:      make(chan string, queueSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start 开始监听，目录不存在时创建；ctx 取消或调用 Stop 后结束
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw
	w.started = true

	w.logger.Info("watching inbox", zap.String("dir", w.dir), zap.Strings("extensions", w.extensions))

	w.wg.Add(2)
	go w.loop(ctx, fsw)
	go w.worker(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			go w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if filepath.Dir(filepath.Clean(path)) != w.dir || !w.Accepts(path) {
		return
	}
	w.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// Accepts 扩展名匹配且不是 Office 锁文件或隐藏文件
func (w *Watcher) Accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range w.extensions {
		if "."+strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.enqueue(path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) enqueue(path string) {
	select {
	case w.queue <- path:
	case <-w.done:
	default:
		w.logger.Warn("inbox queue full, dropping file", zap.String("path", path))
	}
}

// worker 依次处理，保证同一时间只有一个上传
func (w *Watcher) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.queue:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		w.logger.Debug("file disappeared before processing", zap.String("path", path))
		return
	}

	w.logger.Info("processing workbook", zap.String("path", path))
	err := w.handler(ctx, path)
	target := ProcessedDir
	if err != nil {
		target = FailedDir
		w.logger.Error("workbook failed", zap.String("path", path), zap.Error(err))
	}
	if !w.archive {
		return
	}
	if moved, mvErr := moveInto(path, filepath.Join(w.dir, target)); mvErr != nil {
		w.logger.Warn("archive workbook failed", zap.String("path", path), zap.Error(mvErr))
	} else {
		w.logger.Debug("workbook archived", zap.String("to", moved))
	}
}

// moveInto 移动到目标目录，重名时加时间前缀
func moveInto(path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(dir, time.Now().Format("20060102-150405")+"_"+filepath.Base(path))
	}
	return dst, os.Rename(path, dst)
}

// SyncExisting 将目录中已有的工作簿加入处理队列
func (w *Watcher) SyncExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if w.Accepts(path) {
			w.enqueue(path)
		}
	}
	return nil
}

// Dir 监听目录
func (w *Watcher) Dir() string { return w.dir }

// Stop 停止监听并等待当前文件处理完成
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		w.wg.Wait()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	fsw := w.fsw
	w.fsw = nil
	w.started = false
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.done) })
	if fsw != nil {
		_ = fsw.Close()
	}
	w.wg.Wait()
}
