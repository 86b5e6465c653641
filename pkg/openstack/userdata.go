package openstack

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dhis2-sre/mq-manager/pkg/provider"
	"gopkg.in/yaml.v3"
)

const cookiePath = "/var/lib/rabbitmq/.erlang.cookie"

type cloudConfig struct {
	WriteFiles []writeFile `yaml:"write_files"`
	RunCmd     [][]string  `yaml:"runcmd"`
}

type writeFile struct {
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Owner       string `yaml:"owner"`
	Permissions string `yaml:"permissions"`
}

// newUserData renders the cloud-config that configures the broker admin user. Every node of a
// cluster gets the same Erlang cookie.
func newUserData(request provider.NodeRequest) ([]byte, error) {
	cfg := cloudConfig{
		WriteFiles: []writeFile{
			{
				Path:        cookiePath,
				Content:     erlangCookie(request.ClusterID, request.Password),
				Owner:       "rabbitmq:rabbitmq",
				Permissions: "0400",
			},
		},
		RunCmd: [][]string{
			{"systemctl", "restart", "rabbitmq-server"},
			{"rabbitmqctl", "await_startup"},
			{"rabbitmqctl", "add_user", request.Username, request.Password},
			{"rabbitmqctl", "set_user_tags", request.Username, "administrator"},
			{"rabbitmqctl", "set_permissions", "-p", "/", request.Username, ".*", ".*", ".*"},
			{"rabbitmqctl", "delete_user", "guest"},
		},
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render user data: %v", err)
	}

	return append([]byte("#cloud-config\n"), body...), nil
}

func erlangCookie(clusterID, password string) string {
	sum := sha256.Sum256([]byte(clusterID + ":" + password))
	return hex.EncodeToString(sum[:])
}
