// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package kms implements a Keycrypt using AWS KMS and S3. Secrets are
// stored with the s3crypto client: each object is encrypted on the
// client with a data key that KMS derives from a master key, and the
// encrypted data key is stored with the object. Access is governed
// by IAM policies on the KMS key and the bucket.
//
// A URL kms://<id>/<name> stores secret <name> in bucket
// lanis-keycrypt-<id>, encrypted under the KMS key alias/<id>.
package kms

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3crypto"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/security/keycrypt"
)

// prefix versions the object layout in the bucket.
const prefix = "v1/"

// DefaultRegion is the AWS region used for the kms scheme.
var DefaultRegion = "eu-central-1"

func init() {
	keycrypt.RegisterFunc("kms", func(h string) keycrypt.Keycrypt {
		sess := session.New(&aws.Config{Region: aws.String(DefaultRegion)})
		return New(sess, h)
	})
}

var _ keycrypt.Keycrypt = (*Crypt)(nil)

// Crypt is a Keycrypt that keeps secrets in S3, encrypted on the
// client under data keys issued by KMS.
type Crypt struct {
	bucket string

	once      sync.Once
	sess      *session.Session
	keyID     string
	encrypter *s3crypto.EncryptionClient
	decrypter *s3crypto.DecryptionClient
}

// New returns a Crypt that uses the KMS key alias/<id> and the bucket
// lanis-keycrypt-<id>. The AWS clients are created on first use.
func New(sess *session.Session, id string) *Crypt {
	return &Crypt{sess: sess, keyID: "alias/" + id, bucket: Bucket(id)}
}

// Bucket returns the bucket holding the secrets of key id.
func Bucket(id string) string {
	return "lanis-keycrypt-" + id
}

func (c *Crypt) clients() (*s3crypto.EncryptionClient, *s3crypto.DecryptionClient) {
	c.once.Do(func() {
		keys := s3crypto.NewKMSKeyGenerator(kms.New(c.sess), c.keyID)
		c.encrypter = s3crypto.NewEncryptionClient(c.sess, s3crypto.AESGCMContentCipherBuilder(keys))
		c.decrypter = s3crypto.NewDecryptionClient(c.sess)
	})
	return c.encrypter, c.decrypter
}

// Lookup implements keycrypt.Keycrypt.
func (c *Crypt) Lookup(name string) keycrypt.Secret {
	return &secret{c, path.Join(prefix, name)}
}

type secret struct {
	c   *Crypt
	key string
}

func (s *secret) String() string { return fmt.Sprintf("s3://%s/%s", s.c.bucket, s.key) }

func (s *secret) Get() ([]byte, error) {
	_, dec := s.c.clients()
	resp, err := dec.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.c.bucket),
		Key:    aws.String(s.key),
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
		return nil, keycrypt.ErrNoSuchSecret
	}
	if err != nil {
		return nil, errors.E(errors.Net, "reading secret", s.String(), err)
	}
	defer resp.Body.Close()
	p, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.E(errors.Net, "reading secret", s.String(), err)
	}
	return p, nil
}

func (s *secret) Put(p []byte) error {
	enc, _ := s.c.clients()
	_, err := enc.PutObject(&s3.PutObjectInput{
		Body:   bytes.NewReader(p),
		Bucket: aws.String(s.c.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return errors.E(errors.Net, "writing secret", s.String(), err)
	}
	return nil
}
