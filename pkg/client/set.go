// Copyright 2025 The KubeRocketCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client builds the Kubernetes clients the watch layer runs on.
package client

import (
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	defaultQPS       = 100
	defaultBurst     = 150
	defaultUserAgent = "krci-watch"
)

// Config holds the client connection settings. Zero values fall back to the
// kubeconfig loading rules and to the default rate limits.
type Config struct {
	// Kubeconfig is an explicit kubeconfig path. When empty, KUBECONFIG and
	// ~/.kube/config are used, then the in-cluster config.
	Kubeconfig string
	// Context overrides the current kubeconfig context.
	Context string
	// QPS is the number of queries per second to allow
	QPS float32
	// Burst is the number of requests that can be stored for processing
	// before the server starts enforcing the QPS limit
	Burst int
	// UserAgent is appended to the default client-go user agent.
	UserAgent string
}

// Set bundles a REST config with the clients derived from it.
type Set struct {
	config  *rest.Config
	dynamic dynamic.Interface
	cluster string
}

// NewSet loads the kubeconfig described by cfg and builds the clients.
func NewSet(cfg Config) (*Set, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		rules.ExplicitPath = cfg.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.Context}
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	restConfig, err := loader.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	set, err := NewSetForConfig(restConfig, cfg)
	if err != nil {
		return nil, err
	}

	// The in-cluster config has no raw kubeconfig to name the cluster.
	if raw, err := loader.RawConfig(); err == nil {
		current := raw.CurrentContext
		if cfg.Context != "" {
			current = cfg.Context
		}
		if kctx, ok := raw.Contexts[current]; ok && kctx.Cluster != "" {
			set.cluster = kctx.Cluster
		}
	}
	return set, nil
}

// NewSetForConfig builds the clients from an existing REST config, which is
// copied, not modified.
func NewSetForConfig(restConfig *rest.Config, cfg Config) (*Set, error) {
	config := rest.CopyConfig(restConfig)
	config.QPS = cfg.QPS
	if config.QPS <= 0 {
		config.QPS = defaultQPS
	}
	config.Burst = cfg.Burst
	if config.Burst <= 0 {
		config.Burst = defaultBurst
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	config = rest.AddUserAgent(config, userAgent)

	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Set{
		config:  config,
		dynamic: dyn,
		cluster: config.Host,
	}, nil
}

// RESTConfig returns a copy of the REST config.
func (s *Set) RESTConfig() *rest.Config {
	return rest.CopyConfig(s.config)
}

// Dynamic returns the dynamic client.
func (s *Set) Dynamic() dynamic.Interface {
	return s.dynamic
}

// ClusterName returns the kubeconfig cluster name of the selected context,
// or the API server host when there is none.
func (s *Set) ClusterName() string {
	return s.cluster
}
