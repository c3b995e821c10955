// Package process drives normalization of legacy messages from various
// sources: single files, directory trees and zip archives.
package process

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"mfx/archive"
	"mfx/config"
	"mfx/markup"
	"mfx/message"
	"mfx/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("normalize")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Layout = env.Cfg.Document.Layout
	if cmd.IsSet("layout") {
		layout, err := config.ParseOutputLayout(cmd.String("layout"))
		if err != nil {
			log.Warn("Unknown output layout requested, keeping configured one", zap.Error(err))
		} else {
			env.Layout = layout
		}
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("layout", env.Layout))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process handles the core logic independently of CLI framework. It determines
// the input type (directory, archive, or single file) and processes
// accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, log); err != nil {
				return errors.New("unable to process directory")
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		arc, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if arc {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if isMessageFile(head) && len(tail) == 0 {
			// we have message file, it cannot have tail
			file, err := os.Open(head)
			if err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
				break
			}
			defer file.Close()
			if err := processMessage(ctx, file, filepath.Base(head), dst, log); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
				snapshotProblemSource(ctx, head, log)
			}
			break
		}
		return fmt.Errorf("input was not recognized as a message file (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding message files and processes them.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = walkDir(ctx, dir, dir, dst, &count, log)
	return err
}

// walkDir recurses into dir processing entries in natural order, so exports
// with numbered names come out the way a human would expect.
func walkDir(ctx context.Context, root, dir, dst string, count *int, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("Skipping path", zap.String("path", dir), zap.Error(err))
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return natural.Less(entries[i].Name(), entries[j].Name()) })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if err := walkDir(ctx, root, path, dst, count, log); err != nil {
				return err
			}
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}

		arc, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if arc {
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, root)), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			continue
		}

		if !isMessageFile(path) {
			log.Debug("Skipping file, not recognized as message or archive", zap.String("file", path))
			continue
		}

		*count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			continue
		}

		src := strings.TrimPrefix(strings.TrimPrefix(path, root), string(filepath.Separator))
		if err := processMessage(ctx, file, src, dst, log); err != nil {
			if errors.Is(err, message.ErrNotMessage) {
				log.Debug("Skipping file, not recognized as message", zap.String("file", path), zap.Error(err))
			} else {
				log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
				snapshotProblemSource(ctx, path, log)
			}
		}
		file.Close()
	}
	return nil
}

// processArchive walks all files inside archive, finds message files under
// "pathIn" and processes them.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !isMessageFile(f.FileHeader.Name) {
			log.Debug("Skipping file, not recognized as message", zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		cp := state.EnvFromContext(ctx).CodePage

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := processMessage(ctx, r, filepath.Join(pathOut, pathInArchive), dst, log); err != nil {
			if errors.Is(err, message.ErrNotMessage) {
				log.Debug("Skipping file in archive, not recognized as message",
					zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			} else {
				log.Error("Unable to process file in archive",
					zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
				snapshotProblemSource(ctx, arc, log)
			}
		}
		return nil
	})
	return err
}

// processMessage normalizes a single message. "src" is part of the source path
// (always including file name) relative to the original path. When actual file
// was specified it will be just base file name without a path. When looking
// inside archive or directory it will be relative path inside archive or
// directory (including base file name). "dst" is the destination directory
// where the normalized file should be written.
func processMessage(ctx context.Context, r io.Reader, src string, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var msgID, outputName string

	log.Info("Normalization starting", zap.String("from", src))
	defer func(start time.Time) {
		// NOTE: legacy exports contain markup nobody sane would write by hand,
		// if multiple messages are being processed we do not want to stop.
		if r := recover(); r != nil {
			log.Error("Normalization ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("normalization panic: %v", r)
		} else {
			log.Info("Normalization completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("message_id", msgID))
		}
	}(time.Now())

	m, err := message.Prepare(ctx, r, src, log)
	if err != nil {
		return fmt.Errorf("unable to prepare message source (%s): %w", src, err)
	}

	msgID = m.ID

	n := env.Cfg.Document.Normalize
	markup.Normalize(m.Root, markup.Settings{
		UnwrapBreaks:        n.UnwrapBreaks,
		StripTrailingBreaks: n.StripTrailingBreaks,
		ReduceSpacers:       n.ReduceSpacers,
	}, log)

	body, err := m.Normalized(ctx)
	if err != nil {
		return fmt.Errorf("unable to serialize normalized message: %w", err)
	}

	// Determine output file name and path based on input and configuration.
	outputName = buildOutputPath(m, src, dst, env)

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := writeOutput(outputName, filepath.Base(src), body, env.Layout); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	// Store normalization result for debugging
	if env.Rpt != nil {
		env.Rpt.Store(fmt.Sprintf("result-%s%s", msgID, filepath.Ext(outputName)), outputName)
	}

	return nil
}

// snapshotProblemSource copies the offending source into the debug report so
// inputs we could not normalize can be examined after the run. Repeated names
// are versioned by the report itself.
func snapshotProblemSource(ctx context.Context, path string, log *zap.Logger) {
	rpt := state.EnvFromContext(ctx).Rpt
	if rpt == nil {
		return
	}
	if err := rpt.StoreCopy("problem/"+filepath.Base(path), path); err != nil {
		log.Warn("Unable to store problem source in the report", zap.String("file", path), zap.Error(err))
	}
}

// writeOutput serializes normalized body according to requested layout: either
// bare fragment the way messages are stored, or a minimal standalone document
// suitable for direct viewing.
func writeOutput(path, title, body string, layout config.OutputLayout) error {
	buf := new(bytes.Buffer)
	if layout == config.OutputLayoutDocument {
		buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\"/>\n<title>")
		buf.WriteString(html.EscapeString(title))
		buf.WriteString("</title>\n</head>\n<body>")
		buf.WriteString(body)
		buf.WriteString("</body>\n</html>\n")
	} else {
		buf.WriteString(body)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
