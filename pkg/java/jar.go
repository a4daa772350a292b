package java

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
)

// ClassFileSuffix is the resource name suffix of class files.
const ClassFileSuffix = ".class"

// Jar is a java archive opened for reading class files.
type Jar struct {
	filename string
}

// NewJar returns a Jar reading the named file.
func NewJar(filename string) *Jar {
	return &Jar{filename}
}

func (j *Jar) String() string {
	return j.filename
}

// Visit parses every class entry of the archive in entry order and calls
// accept with the parsed class and the entry's bytes. Iteration stops at the
// first error.
func (j *Jar) Visit(accept func(f *zip.File, class *ClassFile, bytecode []byte) error) error {
	r, err := zip.OpenReader(j.filename)
	if err != nil {
		return err
	}
	defer r.Close()
	return VisitClasses(&r.Reader, accept)
}

// VisitClasses is Visit over an already opened archive.
func VisitClasses(r *zip.Reader, accept func(f *zip.File, class *ClassFile, bytecode []byte) error) error {
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ClassFileSuffix) || f.FileInfo().IsDir() {
			continue
		}
		bytecode, err := readEntry(f)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		class, err := Parse(bytecode)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		if err := accept(f, class, bytecode); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
