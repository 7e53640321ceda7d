package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
	"gopkg.in/ini.v1"

	"github.com/accountops/dirops/common"
	"github.com/accountops/dirops/dirops/commandrunner"
	"github.com/accountops/dirops/dirops/directory"
	"github.com/accountops/dirops/dirops/signalbus"
	"github.com/accountops/dirops/dirops/validator"
)

var logger = logrus.New()

type flags struct {
	AddGroup       string
	AddUser        string
	Debug          bool
	DelGroups      stringListValue
	DelUsers       stringListValue
	EditGroup      string
	EditUser       string
	GenPassword    bool
	GetUser        string
	GroupMembers   string
	Hostname       string
	IniFilePath    string
	KeyPassPrompt  bool
	ListGroups     bool
	ListUsers      bool
	PasswordPrompt bool
	UserGroups     string
	Username       string
}

type stringListValue []string

func (s *stringListValue) String() string {
	return strings.Join(*s, ",")
}

func (s *stringListValue) Set(value string) error {
	*s = append(*s, value)
	return nil
}

type config struct {
	Scripts     directory.Scripts
	CheckScript string

	SignalAddr     string
	SignalPassword string
	SignalDB       int
	SignalChannel  string

	SSHHostname string
	SSHUsername string
}

func defaultConfig() *config {
	return &config{
		Scripts: directory.Scripts{
			Users:       "/usr/lib/dirops/list-users",
			UserGroups:  "/usr/lib/dirops/user-groups",
			Groups:      "/usr/lib/dirops/list-groups",
			GenPassword: "/usr/lib/dirops/gen-password",
		},
		CheckScript:   "/usr/lib/dirops/check-field",
		SignalAddr:    "localhost:6379",
		SignalChannel: "dirops.signals",
	}
}

func readConfigFromFile(filePath string) (*config, error) {
	cfg := defaultConfig()

	file, err := ini.Load(filePath)
	if err != nil {
		return nil, err
	}

	scripts := file.Section("scripts")
	if v := scripts.Key("users").String(); v != "" {
		cfg.Scripts.Users = v
	}
	if v := scripts.Key("user_groups").String(); v != "" {
		cfg.Scripts.UserGroups = v
	}
	if v := scripts.Key("groups").String(); v != "" {
		cfg.Scripts.Groups = v
	}
	if v := scripts.Key("gen_password").String(); v != "" {
		cfg.Scripts.GenPassword = v
	}
	if v := scripts.Key("check_field").String(); v != "" {
		cfg.CheckScript = v
	}

	signal := file.Section("signal")
	if v := signal.Key("addr").String(); v != "" {
		cfg.SignalAddr = v
	}
	cfg.SignalPassword = signal.Key("password").String()
	cfg.SignalDB = signal.Key("db").MustInt(0)
	if v := signal.Key("channel").String(); v != "" {
		cfg.SignalChannel = v
	}

	sshSection := file.Section("ssh")
	cfg.SSHHostname = sshSection.Key("hostname").String()
	cfg.SSHUsername = sshSection.Key("username").String()

	return cfg, nil
}

func parseFlags() *flags {
	f := &flags{}
	flag.BoolVar(&f.Debug, "debug", false, "Enable debug log level")
	flag.BoolVar(&f.GenPassword, "gen-password", false, "Generate a random password")
	flag.BoolVar(&f.KeyPassPrompt, "keypass", false, "Prompt for the SSH key passphrase")
	flag.BoolVar(&f.ListGroups, "list-groups", false, "List all groups")
	flag.BoolVar(&f.ListUsers, "list-users", false, "List all users")
	flag.BoolVar(&f.PasswordPrompt, "password", false, "Prompt for the SSH password")
	flag.StringVar(&f.AddGroup, "add-group", "", "Create a group, given as name:member1,member2")
	flag.StringVar(&f.AddUser, "add-user", "", "Create a user, given as username:fullname:shell (prompts for a password)")
	flag.StringVar(&f.EditGroup, "edit-group", "", "Replace a group's members, given as name:member1,member2")
	flag.StringVar(&f.EditUser, "edit-user", "", "Edit a user, given as username:fullname:shell")
	flag.StringVar(&f.GetUser, "get-user", "", "Show one user")
	flag.StringVar(&f.GroupMembers, "group-members", "", "Show one group's members")
	flag.StringVar(&f.Hostname, "hostname", "", "Host to run the directory scripts on (default: local)")
	flag.StringVar(&f.IniFilePath, "ini", "", "Path to INI file with script and signal configuration")
	flag.StringVar(&f.Username, "username", "", "Username for the SSH connection")
	flag.StringVar(&f.UserGroups, "user-groups", "", "Show one user's group memberships")
	flag.Var(&f.DelGroups, "del-group", "Delete a group (repeatable)")
	flag.Var(&f.DelUsers, "del-user", "Delete a user (repeatable)")
	flag.Parse()
	return f
}

// parseGroupSpec splits "name:member1,member2" into a group request.
func parseGroupSpec(spec string) (directory.Group, error) {
	name, memberList, _ := strings.Cut(spec, ":")
	if name == "" {
		return directory.Group{}, fmt.Errorf("invalid group spec %q: empty name", spec)
	}

	var members []string
	for _, member := range strings.Split(memberList, ",") {
		if member = strings.TrimSpace(member); member != "" {
			members = append(members, member)
		}
	}
	return directory.Group{Name: name, Members: members}, nil
}

// parseUserSpec splits "username:fullname:shell" into a user request. The
// password is prompted for separately.
func parseUserSpec(spec string) (directory.User, error) {
	parts := strings.SplitN(spec, ":", 3)
	if parts[0] == "" {
		return directory.User{}, fmt.Errorf("invalid user spec %q: empty username", spec)
	}

	user := directory.User{Username: parts[0]}
	if len(parts) > 1 {
		user.FullName = parts[1]
	}
	if len(parts) > 2 {
		user.Shell = parts[2]
	}
	return user, nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

type sshDialer struct{}

func (sshDialer) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	conn, err := net.DialTimeout(network, addr, timeout)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func dumpJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func run(f *flags, dir *directory.Directory) error {
	ctx := context.Background()
	var result *multierror.Error

	if f.ListUsers {
		users, err := dir.ListUsers(ctx)
		if err != nil {
			return err
		}
		if err := dumpJSON(users); err != nil {
			return err
		}
	}

	if f.GetUser != "" {
		users, err := dir.GetUser(ctx, f.GetUser)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			logger.Warnf("User %q does not exist", f.GetUser)
		}
		if err := dumpJSON(users); err != nil {
			return err
		}
	}

	if f.UserGroups != "" {
		groups, err := dir.UserGroups(ctx, f.UserGroups)
		if err != nil {
			return err
		}
		if err := dumpJSON(groups); err != nil {
			return err
		}
	}

	if f.ListGroups {
		groups, err := dir.ListGroups(ctx)
		if err != nil {
			return err
		}
		if err := dumpJSON(groups); err != nil {
			return err
		}
	}

	if f.GroupMembers != "" {
		members, err := dir.GetGroupMembers(ctx, f.GroupMembers)
		if err != nil {
			return err
		}
		if err := dumpJSON(members); err != nil {
			return err
		}
	}

	if f.GenPassword {
		password, err := dir.RandomPassword(ctx)
		if err != nil {
			return err
		}
		fmt.Println(password)
	}

	if f.AddGroup != "" {
		group, err := parseGroupSpec(f.AddGroup)
		if err != nil {
			return err
		}
		if err := dir.AddGroup(ctx, group); err != nil {
			return err
		}
		logger.Infof("Requested creation of group %q", group.Name)
	}

	if f.EditGroup != "" {
		group, err := parseGroupSpec(f.EditGroup)
		if err != nil {
			return err
		}
		if err := dir.EditGroup(ctx, group); err != nil {
			return err
		}
		logger.Infof("Requested modification of group %q", group.Name)
	}

	for _, name := range f.DelGroups {
		if err := dir.DeleteGroup(ctx, name); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete group %q: %w", name, err))
			continue
		}
		logger.Infof("Requested deletion of group %q", name)
	}

	if f.AddUser != "" {
		user, err := parseUserSpec(f.AddUser)
		if err != nil {
			return err
		}
		user.Password, err = promptSecret(fmt.Sprintf("Password for new user %s: ", user.Username))
		if err != nil {
			return err
		}
		if err := dir.AddUser(ctx, user); err != nil {
			return err
		}
		logger.Infof("Requested creation of user %q", user.Username)
	}

	if f.EditUser != "" {
		user, err := parseUserSpec(f.EditUser)
		if err != nil {
			return err
		}
		if err := dir.EditUser(ctx, user); err != nil {
			return err
		}
		logger.Infof("Requested modification of user %q", user.Username)
	}

	for _, username := range f.DelUsers {
		if err := dir.DeleteUser(ctx, username); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete user %q: %w", username, err))
			continue
		}
		logger.Infof("Requested deletion of user %q", username)
	}

	return result.ErrorOrNil()
}

func main() {
	f := parseFlags()

	if f.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := defaultConfig()
	if f.IniFilePath != "" {
		var err error
		cfg, err = readConfigFromFile(f.IniFilePath)
		if err != nil {
			logger.Fatalf("Could not read config file: %v", err)
		}
	}

	hostname := cfg.SSHHostname
	if f.Hostname != "" {
		hostname = f.Hostname
	}
	username := cfg.SSHUsername
	if f.Username != "" {
		username = f.Username
	}

	creds := common.Credentials{User: username}
	if f.PasswordPrompt {
		password, err := promptSecret("SSH password: ")
		if err != nil {
			logger.Fatalf("Could not read password: %v", err)
		}
		creds.Password = password
	}
	if f.KeyPassPrompt {
		passphrase, err := promptSecret("SSH key passphrase: ")
		if err != nil {
			logger.Fatalf("Could not read key passphrase: %v", err)
		}
		creds.KeyPassphrase = passphrase
	}

	runner := &commandrunner.UnixCommandRunner{
		Hostname:    hostname,
		SSHClient:   sshDialer{},
		Credentials: creds,
	}

	signaler := signalbus.NewRedisSignaler(cfg.SignalAddr, cfg.SignalPassword, cfg.SignalDB, cfg.SignalChannel)
	defer signaler.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := signaler.Ping(pingCtx); err != nil {
		logger.Warnf("Signal channel is not reachable at %s: %v", cfg.SignalAddr, err)
	}
	cancel()

	fieldValidator := &validator.ScriptValidator{Runner: runner, Script: cfg.CheckScript}

	dir := directory.New(runner, signaler, fieldValidator, cfg.Scripts)

	if err := run(f, dir); err != nil {
		logger.Fatal(err)
	}
}
