package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/framescroll/internal/config"
	"github.com/ivlev/framescroll/internal/engine"
	"github.com/ivlev/framescroll/internal/preview"
	"github.com/ivlev/framescroll/internal/system"
	"github.com/ivlev/framescroll/internal/timeline"
	"github.com/ivlev/framescroll/internal/video"
)

// Задается при сборке: -ldflags "-X main.version=..."
var version = "dev"

const usage = `framescroll — кадровая анимация, привязанная к прокрутке

Команды:
  render   записать прокрутку последовательности в видео
  preview  открыть окно и прокручивать колесом мыши
  frame    сохранить один кадр (PNG) для заданного прогресса
  extract  разложить видео на JPEG-кадры
  script   записать сценарий прокрутки по умолчанию (YAML)

Запустите "framescroll <команда> -h" для списка флагов.
`

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "render":
		err = runRender(ctx, args)
	case "preview":
		err = runPreview(ctx, args)
	case "frame":
		err = runFrame(ctx, args)
	case "extract":
		err = runExtract(ctx, args)
	case "script":
		err = runScript(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "[-] Неизвестная команда: %s\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}

// sceneFlags — общие флаги команд, работающих с последовательностью кадров.
type sceneFlags struct {
	fs *flag.FlagSet

	configPath    string
	input         string
	videoURL      string
	count         int
	targetWidth   int
	templateBase  string
	start, end    int
	pad           int
	width, height int
	dpr           float64
	zoomFrom      float64
	zoomTo        float64
	reducedMotion bool
	window        int
	concurrency   int
	interp        string
	title         string
	subtitle      string
	qrLink        string

	// источник задан флагом -input, -video или -template
	sourceFlag bool
}

func newSceneFlags(name string) *sceneFlags {
	sf := &sceneFlags{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	fs := sf.fs
	fs.StringVar(&sf.configPath, "config", "", "Файл настроек YAML или TOML")
	fs.StringVar(&sf.input, "input", "", "Папка с кадрами, PDF или видеофайл (по умолчанию: самое свежее видео в input/video/)")
	fs.StringVar(&sf.videoURL, "video", "", "Видео для извлечения кадров")
	fs.IntVar(&sf.count, "count", config.DefaultVideoCount, "Сколько кадров извлечь из видео")
	fs.IntVar(&sf.targetWidth, "target-width", config.DefaultTargetWidth, "Ширина извлекаемых кадров")
	fs.StringVar(&sf.templateBase, "template", "", "Префикс нумерованных кадров: <template>001.jpg")
	fs.IntVar(&sf.start, "start", 1, "Первый номер кадра шаблона")
	fs.IntVar(&sf.end, "end", 0, "Последний номер кадра шаблона (включительно)")
	fs.IntVar(&sf.pad, "pad", config.DefaultPadSize, "Число цифр в номере кадра")
	fs.IntVar(&sf.width, "width", config.DefaultWidth, "Ширина поверхности (CSS px)")
	fs.IntVar(&sf.height, "height", config.DefaultHeight, "Высота поверхности (CSS px)")
	fs.Float64Var(&sf.dpr, "dpr", config.DefaultDPR, "Плотность пикселей (не больше 2)")
	fs.Float64Var(&sf.zoomFrom, "zoom-from", 1, "Масштаб в начале прокрутки (на сайте 1.12)")
	fs.Float64Var(&sf.zoomTo, "zoom-to", 1, "Масштаб в конце прокрутки")
	fs.BoolVar(&sf.reducedMotion, "reduced-motion", false, "Показать только первый кадр без прокрутки")
	fs.IntVar(&sf.window, "window", config.DefaultWindow, "Окно предзагрузки (кадров вперед)")
	fs.IntVar(&sf.concurrency, "concurrency", 0, "Одновременных загрузок (0 - по числу ядер)")
	fs.StringVar(&sf.interp, "interp", "", "Масштабирование: nearest, bilinear, catmullrom (по умолчанию быстрый билинейный)")
	fs.StringVar(&sf.title, "title", "", "Заголовок поверх кадров")
	fs.StringVar(&sf.subtitle, "subtitle", "", "Подзаголовок поверх кадров")
	fs.StringVar(&sf.qrLink, "qr", "", "Ссылка для QR-кода в углу")
	return sf
}

// load читает файл настроек и применяет только явно заданные флаги.
func (sf *sceneFlags) load(args []string) (*config.Config, error) {
	if err := sf.fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(sf.configPath)
	if err != nil {
		return nil, err
	}
	cfg.BuildVersion = version

	sf.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input", "video", "template":
			sf.sourceFlag = true
		}
		switch f.Name {
		case "input":
			applyInput(&cfg.Sequence, sf.input)
		case "video":
			resetSource(&cfg.Sequence)
			cfg.Sequence.Video = &config.Video{URL: sf.videoURL}
		case "template":
			resetSource(&cfg.Sequence)
			cfg.Sequence.Template = &config.Template{Base: sf.templateBase}
		case "width":
			cfg.Width = sf.width
		case "height":
			cfg.Height = sf.height
		case "dpr":
			cfg.DPR = sf.dpr
		case "zoom-from":
			cfg.ZoomFrom = sf.zoomFrom
		case "zoom-to":
			cfg.ZoomTo = sf.zoomTo
		case "reduced-motion":
			cfg.ReducedMotion = sf.reducedMotion
		case "window":
			cfg.Window = sf.window
		case "concurrency":
			cfg.MaxConcurrent = sf.concurrency
		case "interp":
			cfg.Interpolator = sf.interp
		case "title":
			cfg.Overlay.Title = sf.title
		case "subtitle":
			cfg.Overlay.Subtitle = sf.subtitle
		case "qr":
			cfg.Overlay.QRLink = sf.qrLink
		}
	})

	// Параметры шаблона и видео имеют смысл только вместе с источником
	if t := cfg.Sequence.Template; t != nil && sf.templateBase != "" {
		start := sf.start
		t.Start, t.End, t.PadSize = &start, sf.end, sf.pad
	}
	if v := cfg.Sequence.Video; v != nil && (sf.videoURL != "" || isVideo(sf.input)) {
		v.Count, v.TargetWidth = sf.count, sf.targetWidth
	}

	if !hasSource(cfg.Sequence) {
		latest, err := system.FindLatestVideo("input/video")
		if err != nil {
			return nil, fmt.Errorf("источник кадров не задан: %v. Положите видео в input/video/ или укажите -input", err)
		}
		fmt.Printf("[*] Выбран файл: %s\n", latest)
		applyInput(&cfg.Sequence, latest)
		cfg.Sequence.Video.Count, cfg.Sequence.Video.TargetWidth = sf.count, sf.targetWidth
	}

	if v := cfg.Sequence.Video; v != nil && v.Quality <= 0 {
		v.Quality = config.DefaultVideoQuality
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reloadSource возвращает источник для повторного разрешения: из файла
// настроек, если источник задан в нем, иначе текущий (например, папка,
// в которую добавились кадры).
func (sf *sceneFlags) reloadSource(current config.Sequence) (config.Sequence, error) {
	if sf.configPath == "" || sf.sourceFlag {
		return current, nil
	}
	cfg, err := config.Load(sf.configPath)
	if err != nil {
		return current, err
	}
	if !hasSource(cfg.Sequence) {
		return current, nil
	}
	return cfg.Sequence, nil
}

func isVideo(path string) bool {
	return path != "" && system.IsVideoFile(path)
}

// resetSource убирает источники из файла настроек: флаг командной строки
// заменяет их, а не дополняет.
func resetSource(seq *config.Sequence) {
	*seq = config.Sequence{DPI: seq.DPI}
}

// applyInput определяет тип источника по пути.
func applyInput(seq *config.Sequence, input string) {
	resetSource(seq)
	switch {
	case isVideo(input):
		seq.Video = &config.Video{URL: input}
	case strings.HasSuffix(strings.ToLower(input), ".pdf"):
		seq.PDF = input
	default:
		seq.Dir = input
	}
}

func hasSource(seq config.Sequence) bool {
	return len(seq.Frames) > 0 ||
		(seq.Template != nil && seq.Template.Base != "") ||
		(seq.Video != nil && seq.Video.URL != "") ||
		seq.Dir != "" || seq.PDF != ""
}

func runRender(ctx context.Context, args []string) error {
	sf := newSceneFlags("render")
	output := sf.fs.String("output", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	scriptPath := sf.fs.String("script", "", "Сценарий прокрутки YAML (по умолчанию: равномерно от начала до конца)")
	duration := sf.fs.Float64("duration", config.DefaultDuration, "Длительность видео без сценария (сек)")
	fps := sf.fs.Int("fps", config.DefaultFPS, "FPS")
	quality := sf.fs.Int("quality", 0, "Качество видео (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	stats := sf.fs.Bool("stats", false, "Показать отчет о производительности и дописать benchmark.log")

	cfg, err := sf.load(args)
	if err != nil {
		return err
	}
	sf.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "script":
			cfg.ScriptPath = *scriptPath
		case "duration":
			cfg.Duration = *duration
		case "fps":
			cfg.FPS = *fps
		case "quality":
			cfg.Quality = *quality
		case "stats":
			cfg.ShowStats = *stats
		}
	})
	if *output != "" {
		cfg.OutputVideo = *output
	}
	if cfg.OutputVideo == "" {
		os.MkdirAll("output", 0755)
		cfg.OutputVideo = defaultOutput(cfg.Sequence, "mp4")
	}

	if cfg.VideoEncoder == "" {
		encoderName, _ := system.GetBestH264Encoder()
		if encoderName != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoderName)
		}
		cfg.VideoEncoder = encoderName
	}
	if cfg.Quality == 0 {
		cfg.Quality = system.DefaultQuality(cfg.VideoEncoder)
	}

	project := engine.NewRenderProject(cfg, video.NewFFmpegExtractor())
	if err := project.Run(ctx); err != nil {
		return fmt.Errorf("ошибка проекта: %w", err)
	}
	return nil
}

func runFrame(ctx context.Context, args []string) error {
	sf := newSceneFlags("frame")
	progress := sf.fs.Float64("progress", 0, "Прогресс прокрутки 0..1")
	output := sf.fs.String("output", "", "Путь к PNG (если пусто, генерируется автоматически в output/)")

	cfg, err := sf.load(args)
	if err != nil {
		return err
	}
	path := *output
	if path == "" {
		os.MkdirAll("output", 0755)
		path = defaultOutput(cfg.Sequence, "png")
	}

	project := engine.NewRenderProject(cfg, video.NewFFmpegExtractor())
	return project.Snapshot(ctx, *progress, path)
}

func runPreview(ctx context.Context, args []string) error {
	sf := newSceneFlags("preview")
	cfg, err := sf.load(args)
	if err != nil {
		return err
	}

	win := preview.NewWindow("framescroll", cfg.Width, cfg.Height, cfg.ReducedMotion)
	s, err := engine.Open(ctx, cfg, win, video.NewFFmpegExtractor(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("[*] Кадров: %d | Прокрутка: %.0fpx | Колесо мыши, стрелки, Home/End, C - копировать кадр, R - перечитать источник, F12 - статус\n",
		s.Sequence.Len(), s.Driver.Distance())

	win.OnReload(func() {
		seq, err := sf.reloadSource(cfg.Sequence)
		if err != nil {
			log.Printf("[!] Настройки не перечитаны: %v", err)
			return
		}
		changed, err := s.Reload(ctx, seq)
		if err != nil {
			log.Printf("[!] Источник не обновлен: %v", err)
			return
		}
		if !changed {
			fmt.Println("[*] Источник не изменился")
		}
	})

	win.Attach(s.Frame, func() string {
		st := s.Cache.Stats()
		return fmt.Sprintf("progress %.3f  frame %d/%d  loaded %d  failed %d  %s",
			s.Driver.Progress(), s.Driver.Target()+1, s.Sequence.Len(), st.Loaded, st.Failed, s.Driver.State())
	})
	return win.Run()
}

func runExtract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	input := fs.String("input", "", "Видеофайл или URL (по умолчанию: самое свежее видео в input/video/)")
	outDir := fs.String("out", "", "Папка для кадров (если пусто, output/<имя>_frames)")
	count := fs.Int("count", config.DefaultVideoCount, "Сколько кадров извлечь")
	targetWidth := fs.Int("target-width", config.DefaultTargetWidth, "Ширина кадров")
	quality := fs.Float64("quality", config.DefaultVideoQuality, "Качество JPEG 0..1")
	if err := fs.Parse(args); err != nil {
		return err
	}

	url := *input
	if url == "" {
		latest, err := system.FindLatestVideo("input/video")
		if err != nil {
			return fmt.Errorf("%v. Положите видео в input/video/ или укажите -input", err)
		}
		url = latest
		fmt.Printf("[*] Выбран файл: %s\n", url)
	}

	dir := *outDir
	if dir == "" {
		name := strings.TrimSuffix(filepath.Base(url), filepath.Ext(url))
		dir = filepath.Join("output", strings.ReplaceAll(name, " ", "_")+"_frames")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	start := time.Now()
	ex := video.NewFFmpegExtractor()
	opts := video.Options{Count: *count, TargetWidth: *targetWidth, Quality: *quality}
	frames, err := ex.Extract(ctx, url, opts, dir, printProgress)
	if err != nil {
		return fmt.Errorf("извлечение прервано после %d кадров: %w", len(frames), err)
	}
	fmt.Printf("[+++] Успех! %d кадров за %.2fs: %s\n", len(frames), time.Since(start).Seconds(), dir)
	return nil
}

func runScript(args []string) error {
	fs := flag.NewFlagSet("script", flag.ExitOnError)
	output := fs.String("output", "scroll.yaml", "Путь к сценарию")
	duration := fs.Float64("duration", config.DefaultDuration, "Длительность (сек)")
	fps := fs.Int("fps", config.DefaultFPS, "FPS")
	hold := fs.Float64("hold", 0, "Пауза на первом и последнем кадре (сек)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	script := timeline.Default(*duration, *fps)
	if *hold > 0 && 2*(*hold) < *duration {
		script.Keyframes = []timeline.Keyframe{
			{Time: 0, Progress: 0},
			{Time: *hold, Progress: 0},
			{Time: *duration - *hold, Progress: 1, Ease: "in-out"},
			{Time: *duration, Progress: 1},
		}
	}
	if err := script.Validate(); err != nil {
		return err
	}
	if err := timeline.WriteScript(script, *output); err != nil {
		return err
	}
	fmt.Printf("[+++] Сценарий сохранен: %s\n", *output)
	return nil
}

func printProgress(p float64) {
	if system.IsTerminal() {
		fmt.Printf("\r[*] Извлечение кадров: %3.0f%%", p*100)
		if p >= 1 {
			fmt.Println()
		}
		return
	}
	fmt.Printf("[*] Извлечение кадров: %.0f%%\n", p*100)
}

// defaultOutput строит имя файла в output/ по источнику и времени запуска.
func defaultOutput(seq config.Sequence, ext string) string {
	nameSource := "frames"
	switch {
	case seq.Video != nil && seq.Video.URL != "":
		nameSource = seq.Video.URL
	case seq.PDF != "":
		nameSource = seq.PDF
	case seq.Dir != "":
		nameSource = seq.Dir
	case seq.Template != nil && seq.Template.Base != "":
		nameSource = seq.Template.Base
	}

	baseName := filepath.Base(strings.TrimRight(nameSource, "/"))
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	if cleanName == "" || cleanName == "." {
		cleanName = "frames"
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.%s", cleanName, timestamp, ext))
}
