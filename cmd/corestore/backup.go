package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/corestore/backup"
	"github.com/hupe1980/corestore/blobstore"
	miniostore "github.com/hupe1980/corestore/blobstore/minio"
	s3store "github.com/hupe1980/corestore/blobstore/s3"
	"github.com/hupe1980/corestore/codec"
)

// openTarget builds the blob store backups are written to.
func (a *app) openTarget(ctx context.Context) (blobstore.Store, error) {
	cfg := a.cfg

	switch cfg.Store {
	case "", "local":
		if cfg.StorePath == "" {
			return nil, errors.New("local backups need --store-path")
		}
		return blobstore.NewLocalStore(cfg.StorePath), nil

	case "s3":
		if cfg.Bucket == "" {
			return nil, errors.New("s3 backups need --bucket")
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		store := s3store.NewStore(client, cfg.Bucket, cfg.Prefix)
		if cfg.DDBTable == "" {
			return store, nil
		}

		baseURI := "s3://" + cfg.Bucket + "/" + strings.Trim(cfg.Prefix, "/")
		return s3store.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DDBTable, baseURI), nil

	case "minio":
		if cfg.Endpoint == "" || cfg.Bucket == "" {
			return nil, errors.New("minio backups need --endpoint and --bucket")
		}
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: !cfg.Insecure,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, cfg.Bucket, cfg.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

type manifestView struct {
	Blob string `json:"manifest"`
	*backup.Manifest
}

func (a *app) printManifest(w io.Writer, blob string, m *backup.Manifest) error {
	return a.print(w, manifestView{Blob: blob, Manifest: m}, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\tentries=%d cores=%d frames=%d bytes=%d compression=%s\n",
			blob, m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), m.Entries, m.Cores, m.Frames, m.DataBytes, m.Compression)
	})
}

func (a *app) backupCommand() *cobra.Command {
	var (
		name     string
		noCommit bool
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "export the storage into the backup target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			opts, err := a.cfg.backupOptions()
			if err != nil {
				return err
			}
			if name != "" {
				opts = append(opts, backup.WithName(name))
			}
			if noCommit {
				opts = append(opts, backup.WithoutCommit())
			}

			store, err := a.openTarget(ctx)
			if err != nil {
				return err
			}

			s, err := a.openStorage(openReadOnly)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			m, err := backup.Export(ctx, s, store, opts...)
			if err != nil {
				return err
			}
			return a.printManifest(cmd.OutOrStdout(), backup.ManifestName(m.Name, codec.Default), m)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "backup name (default: timestamp)")
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "do not point CURRENT at the new backup")
	return cmd
}

func (a *app) restoreCommand() *cobra.Command {
	var (
		manifest string
		noVerify bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "replace the storage with a backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			opts, err := a.cfg.backupOptions()
			if err != nil {
				return err
			}
			if manifest != "" {
				opts = append(opts, backup.WithManifest(manifest))
			}
			if noVerify {
				opts = append(opts, backup.WithoutVerify())
			}

			store, err := a.openTarget(ctx)
			if err != nil {
				return err
			}
			if manifest == "" {
				if manifest, err = backup.Current(ctx, store); err != nil {
					return err
				}
				opts = append(opts, backup.WithManifest(manifest))
			}

			s, err := a.openStorage(openCreate)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			m, err := backup.Restore(ctx, s, store, opts...)
			if err != nil {
				return err
			}
			return a.printManifest(cmd.OutOrStdout(), manifest, m)
		},
	}

	cmd.Flags().StringVar(&manifest, "manifest", "", "manifest to restore (default: CURRENT)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip the checksum pass before clearing the storage")
	return cmd
}

func (a *app) backupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "list the backups in the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := a.openTarget(ctx)
			if err != nil {
				return err
			}

			names, err := backup.List(ctx, store)
			if err != nil {
				return err
			}
			current, err := backup.Current(ctx, store)
			if err != nil && !errors.Is(err, backup.ErrNoBackup) {
				return err
			}

			type entry struct {
				manifestView
				Current bool `json:"current"`
			}
			var entries []entry
			for _, n := range names {
				m, err := backup.ReadManifest(ctx, store, n)
				if err != nil {
					return err
				}
				entries = append(entries, entry{manifestView{Blob: n, Manifest: m}, n == current})
			}

			return a.print(cmd.OutOrStdout(), entries, func(w io.Writer) {
				for _, e := range entries {
					marker := " "
					if e.Current {
						marker = "*"
					}
					fmt.Fprintf(w, "%s %s\tentries=%d bytes=%d\n", marker, e.Blob, e.Entries, e.DataBytes)
				}
			})
		},
	}
}
